package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/sakif/chat-wrapper/internal/apperror"
	"github.com/sakif/chat-wrapper/internal/model"
)

// Driver failures are simulated with sqlmock; the real schema is not involved.
func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return wrap(conn), mock
}

func TestRecent_QueryErrorIsWrapped(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT id, user_id, role, content, created_at").
		WithArgs("u1", 20).
		WillReturnError(boom)

	_, err := db.Messages().Recent(context.Background(), "u1", 20)
	if !errors.Is(err, boom) {
		t.Fatalf("Recent() error = %v, want wrapped %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRecent_RowErrorSurfaces(t *testing.T) {
	db, mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{"id", "user_id", "role", "content", "created_at"}).
		AddRow(2, "u1", "assistant", "b", 0).
		AddRow(1, "u1", "user", "a", 0).
		RowError(1, errors.New("corrupt page"))
	mock.ExpectQuery("SELECT id, user_id, role, content, created_at").WillReturnRows(rows)

	_, err := db.Messages().Recent(context.Background(), "u1", 20)
	if err == nil {
		t.Fatal("Recent() error = nil, want row error")
	}
}

func TestUserCreate_ConstraintMappedToConflict(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(errors.New("constraint failed: UNIQUE constraint failed: users.login_name (2067)"))

	err := db.Users().Create(context.Background(), &model.User{LoginName: "bob", PasswordHash: "x"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() error = %v, want ErrConflict", err)
	}
}

func TestUserDelete_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM sessions").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM users").WithArgs("u1").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	if err := db.Users().Delete(context.Background(), "u1"); err == nil {
		t.Fatal("Delete() error = nil, want failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUserUpdatePasswordHashAndRevoke_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET password_hash").WithArgs("new-hash", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM sessions").WithArgs("u1").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	if err := db.Users().UpdatePasswordHashAndRevoke(context.Background(), "u1", "new-hash"); err == nil {
		t.Fatal("UpdatePasswordHashAndRevoke() error = nil, want failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUsageRecord_ExecErrorIsWrapped(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO usage_log").WillReturnError(errors.New("readonly database"))

	err := db.Usage().Record(context.Background(), &model.UsageRecord{UserID: "u1", Date: "2026-01-01"})
	if err == nil {
		t.Fatal("Record() error = nil")
	}
}
