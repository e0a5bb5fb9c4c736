package repo

import (
	"context"
	"database/sql"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/cortexa-labs/ragserve/internal/model"
	"github.com/cortexa-labs/ragserve/internal/pkg/dbutil"
	appErr "github.com/cortexa-labs/ragserve/internal/pkg/errors"
)

var documentFileFields = []string{"id", "user_id", "filename", "fingerprint", "status", "error_message", "ctime", "mtime"}

type DocumentFileRepo struct {
	db *sqlx.DB
}

func NewDocumentFileRepo(db *sqlx.DB) *DocumentFileRepo {
	return &DocumentFileRepo{db: db}
}

// Upsert keys on (user_id, filename) so repeated uploads of the same
// name roll the row forward instead of accumulating duplicates.
func (r *DocumentFileRepo) Upsert(ctx context.Context, file *model.DocumentFile) error {
	data := map[string]interface{}{
		"id":            file.ID,
		"user_id":       file.UserID,
		"filename":      file.Filename,
		"fingerprint":   file.Fingerprint,
		"status":        string(file.Status),
		"error_message": file.ErrorMessage,
		"ctime":         file.Ctime,
		"mtime":         file.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("document_files", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr += " ON CONFLICT (user_id, filename) DO UPDATE SET fingerprint = EXCLUDED.fingerprint, status = EXCLUDED.status, error_message = EXCLUDED.error_message, mtime = EXCLUDED.mtime"
	_, err = r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	return err
}

func (r *DocumentFileRepo) UpdateStatus(ctx context.Context, userID, filename string, status model.FileStatus, errMsg string, mtime int64) error {
	where := map[string]interface{}{
		"user_id":  userID,
		"filename": filename,
	}
	update := map[string]interface{}{
		"status":        string(status),
		"error_message": errMsg,
		"mtime":         mtime,
	}
	sqlStr, args, err := builder.BuildUpdate("document_files", where, update)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentFileRepo) Get(ctx context.Context, userID, filename string) (*model.DocumentFile, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"filename": filename,
	}
	sqlStr, args, err := builder.BuildSelect("document_files", where, documentFileFields)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, dbutil.Rebind(sqlStr), args...)
	file, err := scanDocumentFile(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

func (r *DocumentFileRepo) ListByUser(ctx context.Context, userID string) ([]model.DocumentFile, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "filename asc",
	}
	sqlStr, args, err := builder.BuildSelect("document_files", where, documentFileFields)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []model.DocumentFile
	for rows.Next() {
		file, err := scanDocumentFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

func (r *DocumentFileRepo) Delete(ctx context.Context, userID, filename string) error {
	where := map[string]interface{}{
		"user_id":  userID,
		"filename": filename,
	}
	sqlStr, args, err := builder.BuildDelete("document_files", where)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	return err
}

// DeleteMissing removes rows for files no longer present in the blob
// store. An empty keep list purges every row for the user.
func (r *DocumentFileRepo) DeleteMissing(ctx context.Context, userID string, keep []string) (int64, error) {
	var sqlStr string
	args := []interface{}{userID}
	if len(keep) == 0 {
		sqlStr = "DELETE FROM document_files WHERE user_id = ?"
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
		sqlStr = "DELETE FROM document_files WHERE user_id = ? AND filename NOT IN (" + placeholders + ")"
		for _, name := range keep {
			args = append(args, name)
		}
	}
	result, err := r.db.ExecContext(ctx, dbutil.Rebind(sqlStr), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanDocumentFile(scan func(dest ...interface{}) error) (*model.DocumentFile, error) {
	var file model.DocumentFile
	var status string
	if err := scan(&file.ID, &file.UserID, &file.Filename, &file.Fingerprint, &status, &file.ErrorMessage, &file.Ctime, &file.Mtime); err != nil {
		return nil, err
	}
	file.Status = model.FileStatus(status)
	return &file, nil
}
