package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/sakif/chat-wrapper/internal/model"
)

func appendMessages(t *testing.T, db *DB, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		msg := &model.Message{UserID: userID, Role: role, Content: fmt.Sprintf("m%d", i)}
		if err := db.Messages().Append(context.Background(), msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func TestMessageAppend_AssignsIncreasingIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &model.Message{UserID: "u1", Role: model.RoleUser, Content: "hi"}
	second := &model.Message{UserID: "u1", Role: model.RoleAssistant, Content: "hello"}
	if err := db.Messages().Append(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := db.Messages().Append(ctx, second); err != nil {
		t.Fatal(err)
	}

	if first.ID == 0 || second.ID <= first.ID {
		t.Errorf("ids = %d, %d; want increasing and non-zero", first.ID, second.ID)
	}
	if first.CreatedAt.IsZero() {
		t.Error("Append() did not set CreatedAt")
	}
}

func TestMessageAppend_RejectsUnknownRole(t *testing.T) {
	db := newTestDB(t)

	err := db.Messages().Append(context.Background(), &model.Message{UserID: "u1", Role: "tool", Content: "x"})
	if err == nil {
		t.Fatal("Append() with unknown role succeeded")
	}
}

func TestMessageRecent_OldestFirst(t *testing.T) {
	db := newTestDB(t)
	appendMessages(t, db, "u1", 25)

	msgs, err := db.Messages().Recent(context.Background(), "u1", 20)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(msgs) != 20 {
		t.Fatalf("Recent() returned %d messages, want 20", len(msgs))
	}
	if msgs[0].Content != "m5" || msgs[19].Content != "m24" {
		t.Errorf("window = %s..%s, want m5..m24", msgs[0].Content, msgs[19].Content)
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID <= msgs[i-1].ID {
			t.Fatalf("ids not strictly increasing at %d: %d <= %d", i, msgs[i].ID, msgs[i-1].ID)
		}
	}
}

// Growing the window only adds older messages at the front; the tail of
// every window is the tail of the full log.
func TestMessageRecent_PrefixConsistent(t *testing.T) {
	db := newTestDB(t)
	appendMessages(t, db, "u1", 12)
	ctx := context.Background()

	full, err := db.Messages().Recent(ctx, "u1", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(full) != 12 {
		t.Fatalf("full log has %d messages, want 12", len(full))
	}

	for k := 0; k <= 14; k++ {
		win, err := db.Messages().Recent(ctx, "u1", k)
		if err != nil {
			t.Fatalf("Recent(k=%d) error = %v", k, err)
		}
		want := min(k, len(full))
		if len(win) != want {
			t.Fatalf("Recent(k=%d) len = %d, want %d", k, len(win), want)
		}
		offset := len(full) - len(win)
		for i := range win {
			if win[i].ID != full[offset+i].ID {
				t.Errorf("Recent(k=%d)[%d] = id %d, want id %d", k, i, win[i].ID, full[offset+i].ID)
			}
		}
	}
}

func TestMessageRecent_ScopedByUser(t *testing.T) {
	db := newTestDB(t)
	appendMessages(t, db, "alice", 3)
	appendMessages(t, db, "bob", 5)

	msgs, err := db.Messages().Recent(context.Background(), "alice", 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("alice sees %d messages, want 3", len(msgs))
	}
	for _, m := range msgs {
		if m.UserID != "alice" {
			t.Errorf("leaked message from %s", m.UserID)
		}
	}
}

func TestMessageRecent_Empty(t *testing.T) {
	db := newTestDB(t)

	msgs, err := db.Messages().Recent(context.Background(), "nobody", 20)
	if err != nil {
		t.Fatal(err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Errorf("Recent() = %#v, want empty non-nil slice", msgs)
	}
}
