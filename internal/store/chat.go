package store

import (
	"context"
	"database/sql"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/uzbk/farmmarket/internal/chat"
	"github.com/uzbk/farmmarket/internal/database"
	"github.com/uzbk/farmmarket/internal/models"
)

// RoomSummary is one row of a member's chat inbox.
type RoomSummary struct {
	Room        models.ChatRoom     `json:"room"`
	LastMessage *models.ChatMessage `json:"last_message,omitempty"`
	UnreadCount int                 `json:"unread_count"`
}

// GetOrCreateRoom returns the room between buyer and seller for a listing,
// creating it on first contact. A nil listingID opens a support room. If
// the buyer had previously left the room, opening it again rejoins.
func GetOrCreateRoom(ctx context.Context, db *sql.DB, listingID *string, buyerID, sellerID string) (*models.ChatRoom, error) {
	if buyerID == sellerID {
		return nil, ValidationError("cannot open a chat room with yourself")
	}

	var room *models.ChatRoom

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		query := `
			SELECT id, listing_id, buyer_id, seller_id,
				buyer_last_read_at, seller_last_read_at, buyer_left_at, seller_left_at, created_at
			FROM chat_rooms
			WHERE buyer_id = $1 AND seller_id = $2`
		args := []any{buyerID, sellerID}
		if listingID != nil {
			query += ` AND listing_id = $3`
			args = append(args, *listingID)
		} else {
			query += ` AND listing_id IS NULL`
		}
		query += ` FOR UPDATE`

		room = &models.ChatRoom{}
		err := tx.QueryRowContext(ctx, query, args...).Scan(
			&room.ID,
			&room.ListingID,
			&room.BuyerID,
			&room.SellerID,
			&room.BuyerLastReadAt,
			&room.SellerLastReadAt,
			&room.BuyerLeftAt,
			&room.SellerLeftAt,
			&room.CreatedAt,
		)
		if err == nil {
			if room.BuyerLeftAt != nil {
				_, err = tx.ExecContext(ctx,
					`UPDATE chat_rooms SET buyer_left_at = NULL WHERE id = $1`, room.ID)
				if err != nil {
					return fmt.Errorf("rejoin room: %w", err)
				}
				room.BuyerLeftAt = nil
			}
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("find room: %w", err)
		}

		if listingID != nil {
			var actualSeller string
			err := tx.QueryRowContext(ctx,
				`SELECT seller_id FROM listings WHERE id = $1`, *listingID).Scan(&actualSeller)
			if err != nil {
				if err == sql.ErrNoRows {
					return database.ErrListingNotFound
				}
				return fmt.Errorf("check listing: %w", err)
			}
			if actualSeller != sellerID {
				return database.ErrRoomMismatch
			}
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO chat_rooms (id, listing_id, buyer_id, seller_id, created_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 RETURNING id, listing_id, buyer_id, seller_id,
				buyer_last_read_at, seller_last_read_at, buyer_left_at, seller_left_at, created_at`,
			uuid.NewString(), listingID, buyerID, sellerID).Scan(
			&room.ID,
			&room.ListingID,
			&room.BuyerID,
			&room.SellerID,
			&room.BuyerLastReadAt,
			&room.SellerLastReadAt,
			&room.BuyerLeftAt,
			&room.SellerLeftAt,
			&room.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return room, nil
}

func GetRoom(ctx context.Context, db *sql.DB, roomID string) (*models.ChatRoom, error) {
	room := &models.ChatRoom{}
	err := db.QueryRowContext(ctx,
		`SELECT id, listing_id, buyer_id, seller_id,
			buyer_last_read_at, seller_last_read_at, buyer_left_at, seller_left_at, created_at
		 FROM chat_rooms
		 WHERE id = $1`, roomID).Scan(
		&room.ID,
		&room.ListingID,
		&room.BuyerID,
		&room.SellerID,
		&room.BuyerLastReadAt,
		&room.SellerLastReadAt,
		&room.BuyerLeftAt,
		&room.SellerLeftAt,
		&room.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// PostMessage appends a message to a room. Only a current participant may
// post; a member who left must rejoin first. Content is stored as-is, so
// system messages arrive here already encoded.
func PostMessage(ctx context.Context, db *sql.DB, roomID, senderID, content string) (*models.ChatMessage, error) {
	if content == "" {
		return nil, ValidationError("message content is required")
	}
	if utf8.RuneCountInString(content) > chat.MaxContentLength {
		return nil, ValidationError(fmt.Sprintf("message exceeds %d characters", chat.MaxContentLength))
	}

	room, err := GetRoom(ctx, db, roomID)
	if err != nil {
		return nil, err
	}
	switch senderID {
	case room.BuyerID:
		if room.BuyerLeftAt != nil {
			return nil, database.ErrNotParticipant
		}
	case room.SellerID:
		if room.SellerLeftAt != nil {
			return nil, database.ErrNotParticipant
		}
	default:
		return nil, database.ErrNotParticipant
	}

	msg := &models.ChatMessage{}
	err = db.QueryRowContext(ctx,
		`INSERT INTO chat_messages (id, room_id, sender_id, content, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, room_id, sender_id, content, created_at`,
		uuid.NewString(), roomID, senderID, content).Scan(
		&msg.ID,
		&msg.RoomID,
		&msg.SenderID,
		&msg.Content,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}

	return msg, nil
}

// ListMessages pages a room's history, newest first. Only participants may
// read, including ones who have since left.
func ListMessages(ctx context.Context, db *sql.DB, roomID, memberID, cursor string, limit int) (*CursorPage, error) {
	room, err := GetRoom(ctx, db, roomID)
	if err != nil {
		return nil, err
	}
	if memberID != room.BuyerID && memberID != room.SellerID {
		return nil, database.ErrNotParticipant
	}

	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, room_id, sender_id, content, created_at
		 FROM chat_messages
		 WHERE room_id = $1
		   AND (created_at, id) < ($2, $3)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4`,
		roomID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		err := rows.Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.Content, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	var nextCursor string
	if hasMore && len(messages) > 0 {
		last := messages[len(messages)-1]
		nextCursor = EncodeCursor(Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      messages,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListRooms returns the member's inbox: every room they have not left,
// with the latest message and how many messages arrived after their last
// read. Rooms with the most recent activity come first.
func ListRooms(ctx context.Context, db *sql.DB, memberID string) ([]RoomSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.listing_id, r.buyer_id, r.seller_id,
			r.buyer_last_read_at, r.seller_last_read_at, r.buyer_left_at, r.seller_left_at, r.created_at,
			m.id, m.sender_id, m.content, m.created_at,
			(
				SELECT COUNT(*)
				FROM chat_messages u
				WHERE u.room_id = r.id
				  AND u.sender_id <> $1
				  AND u.created_at > COALESCE(
					CASE WHEN r.buyer_id = $1 THEN r.buyer_last_read_at ELSE r.seller_last_read_at END,
					'epoch'::timestamptz)
			) AS unread_count
		FROM chat_rooms r
		LEFT JOIN LATERAL (
			SELECT id, sender_id, content, created_at
			FROM chat_messages
			WHERE room_id = r.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) m ON TRUE
		WHERE (r.buyer_id = $1 AND r.buyer_left_at IS NULL)
		   OR (r.seller_id = $1 AND r.seller_left_at IS NULL)
		ORDER BY COALESCE(m.created_at, r.created_at) DESC`,
		memberID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var summaries []RoomSummary
	for rows.Next() {
		var (
			s          RoomSummary
			lastID     *string
			lastSender *string
			lastBody   *string
			lastAt     *sql.NullTime
		)
		lastAt = &sql.NullTime{}
		err := rows.Scan(
			&s.Room.ID,
			&s.Room.ListingID,
			&s.Room.BuyerID,
			&s.Room.SellerID,
			&s.Room.BuyerLastReadAt,
			&s.Room.SellerLastReadAt,
			&s.Room.BuyerLeftAt,
			&s.Room.SellerLeftAt,
			&s.Room.CreatedAt,
			&lastID,
			&lastSender,
			&lastBody,
			lastAt,
			&s.UnreadCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		if lastID != nil {
			s.LastMessage = &models.ChatMessage{
				ID:        *lastID,
				RoomID:    s.Room.ID,
				SenderID:  *lastSender,
				Content:   *lastBody,
				CreatedAt: lastAt.Time,
			}
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return summaries, nil
}

// MarkRead stamps the member's last-read time so their unread count resets.
func MarkRead(ctx context.Context, db *sql.DB, roomID, memberID string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE chat_rooms
		SET buyer_last_read_at = CASE WHEN buyer_id = $2 THEN NOW() ELSE buyer_last_read_at END,
		    seller_last_read_at = CASE WHEN seller_id = $2 THEN NOW() ELSE seller_last_read_at END
		WHERE id = $1 AND (buyer_id = $2 OR seller_id = $2)`,
		roomID, memberID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return requireParticipantRow(ctx, db, res, roomID)
}

// LeaveRoom hides the room from the member's inbox. History is kept and
// the other side keeps chatting; rejoining happens through GetOrCreateRoom.
func LeaveRoom(ctx context.Context, db *sql.DB, roomID, memberID string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE chat_rooms
		SET buyer_left_at = CASE WHEN buyer_id = $2 THEN NOW() ELSE buyer_left_at END,
		    seller_left_at = CASE WHEN seller_id = $2 THEN NOW() ELSE seller_left_at END
		WHERE id = $1 AND (buyer_id = $2 OR seller_id = $2)`,
		roomID, memberID)
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	return requireParticipantRow(ctx, db, res, roomID)
}

func requireParticipantRow(ctx context.Context, db *sql.DB, res sql.Result, roomID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := GetRoom(ctx, db, roomID); err != nil {
			return err
		}
		return database.ErrNotParticipant
	}
	return nil
}
