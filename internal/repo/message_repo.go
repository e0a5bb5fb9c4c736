package repo

import (
	"context"
	"encoding/json"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/cortexa-labs/ragserve/internal/model"
	"github.com/cortexa-labs/ragserve/internal/pkg/dbutil"
)

var messageFields = []string{"id", "conversation_id", "user_id", "role", "content", "sources", "ctime"}

type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Append(ctx context.Context, msg *model.Message) error {
	var sources interface{}
	if len(msg.Sources) > 0 {
		blob, err := json.Marshal(msg.Sources)
		if err != nil {
			return err
		}
		sources = blob
	}
	data := map[string]interface{}{
		"id":              msg.ID,
		"conversation_id": msg.ConversationID,
		"user_id":         msg.UserID,
		"role":            string(msg.Role),
		"content":         msg.Content,
		"sources":         sources,
		"ctime":           msg.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("messages", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	return err
}

// ListByUser returns the user's messages oldest first, capped at limit.
// The newest messages win the cap, so the window slides forward as the
// conversation grows.
func (r *MessageRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Message, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{uint(limit)}
	}
	sqlStr, args, err := builder.BuildSelect("messages", where, messageFields)
	if err != nil {
		return nil, err
	}
	msgs, err := r.query(ctx, sqlStr, args)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, userID, convID string) ([]model.Message, error) {
	where := map[string]interface{}{
		"user_id":         userID,
		"conversation_id": convID,
		"_orderby":        "ctime asc",
	}
	sqlStr, args, err := builder.BuildSelect("messages", where, messageFields)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, sqlStr, args)
}

func (r *MessageRepo) ClearByUser(ctx context.Context, userID string) (int64, error) {
	where := map[string]interface{}{
		"user_id": userID,
	}
	sqlStr, args, err := builder.BuildDelete("messages", where)
	if err != nil {
		return 0, err
	}
	result, err := r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *MessageRepo) query(ctx context.Context, sqlStr string, args []interface{}) ([]model.Message, error) {
	rows, err := r.db.QueryContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []model.Message
	for rows.Next() {
		var msg model.Message
		var role string
		var sources []byte
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &role, &msg.Content, &sources, &msg.Ctime); err != nil {
			return nil, err
		}
		msg.Role = model.Role(role)
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &msg.Sources); err != nil {
				return nil, err
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}
