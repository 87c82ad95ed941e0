package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/models"
	"github.com/uzbk/farmmarket/internal/store"
)

func TestNicknameUniqueness(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	alice := newProfile(t, db)
	bob := newProfile(t, db)

	if _, err := store.UpdateNickname(ctx, db, alice, "OrchardFan"); err != nil {
		t.Fatalf("Set nickname: %v", err)
	}

	// taken, case-insensitively
	available, err := store.IsNicknameAvailable(ctx, db, "orchardfan", bob)
	if err != nil {
		t.Fatalf("Check availability: %v", err)
	}
	if available {
		t.Error("Nickname should be taken")
	}

	// but a member's own nickname is available to themselves
	available, err = store.IsNicknameAvailable(ctx, db, "OrchardFan", alice)
	if err != nil {
		t.Fatalf("Check self availability: %v", err)
	}
	if !available {
		t.Error("Own nickname should count as available")
	}

	_, err = store.UpdateNickname(ctx, db, bob, "ORCHARDFAN")
	if !errors.Is(err, database.ErrNicknameTaken) {
		t.Errorf("Expected nickname taken error, got: %v", err)
	}
}

func TestVerificationReReviewOnCoreChange(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	seller := newApprovedSeller(t, db)

	v, err := store.GetVerification(ctx, db, seller)
	if err != nil {
		t.Fatalf("Get verification: %v", err)
	}
	if v.Status != models.VerificationStatusApproved {
		t.Fatalf("Expected APPROVED, got %s", v.Status)
	}

	// editing only the description keeps the approval
	desc := "We also grow pears now"
	v, err = store.SubmitVerification(ctx, db, store.SubmitVerificationRequest{
		UserID:              seller,
		FarmName:            v.FarmName,
		OwnerName:           v.OwnerName,
		Phone:               v.Phone,
		Address:             v.Address,
		Description:         &desc,
		BusinessLicensePath: v.BusinessLicensePath,
	})
	if err != nil {
		t.Fatalf("Resubmit verification: %v", err)
	}
	if v.Status != models.VerificationStatusApproved {
		t.Errorf("Description edit should keep APPROVED, got %s", v.Status)
	}

	// changing the farm name goes back to review
	v, err = store.SubmitVerification(ctx, db, store.SubmitVerificationRequest{
		UserID:              seller,
		FarmName:            "Completely Different Farm",
		OwnerName:           v.OwnerName,
		Phone:               v.Phone,
		Address:             v.Address,
		BusinessLicensePath: v.BusinessLicensePath,
	})
	if err != nil {
		t.Fatalf("Resubmit with core change: %v", err)
	}
	if v.Status != models.VerificationStatusPending {
		t.Errorf("Core change should reset to PENDING, got %s", v.Status)
	}
}

func TestRejectVerificationKeepsReason(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := newProfile(t, db)
	admin := newProfile(t, db)

	if _, err := store.SubmitVerification(ctx, db, store.SubmitVerificationRequest{
		UserID:              user,
		FarmName:            "Foggy Bottom Farm",
		OwnerName:           "Lee Farmer",
		Phone:               "010-2222-3333",
		Address:             "7 Valley Road",
		BusinessLicensePath: "licenses/foggy.pdf",
	}); err != nil {
		t.Fatalf("Submit verification: %v", err)
	}

	if err := store.RejectVerification(ctx, db, user, admin, "license unreadable"); err != nil {
		t.Fatalf("Reject verification: %v", err)
	}

	v, err := store.GetVerification(ctx, db, user)
	if err != nil {
		t.Fatalf("Get verification: %v", err)
	}
	if v.Status != models.VerificationStatusRejected {
		t.Errorf("Expected REJECTED, got %s", v.Status)
	}
	if v.RejectionReason == nil || *v.RejectionReason != "license unreadable" {
		t.Error("Rejection reason not recorded")
	}
}
