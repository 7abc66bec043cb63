package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	appErrors "github.com/unclebandit/wacrm-dispatch/internal/errors"
	"github.com/unclebandit/wacrm-dispatch/internal/model"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return db, mock
}

var guardedUpdateSQL = regexp.QuoteMeta("UPDATE campaign_messages SET")

func TestCampaignMessageRepository_AdvanceStatusArgs(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name     string
		rows     int64
		expected bool
	}{
		{"row moved", 1, true},
		{"guard rejected", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := &CampaignMessageRepository{DB: db}

			mock.ExpectExec(guardedUpdateSQL).
				WithArgs(int64(9), "read", at, model.StatusRead.Rank(), "", "", "").
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			moved, err := repo.AdvanceStatus(context.Background(), 9, model.StatusRead, at)
			if err != nil {
				t.Fatalf("AdvanceStatus: %v", err)
			}
			if moved != tt.expected {
				t.Fatalf("expected moved=%v, got %v", tt.expected, moved)
			}
		})
	}
}

func TestCampaignMessageRepository_MarkSentAndFailedArgs(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := &CampaignMessageRepository{DB: db}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(guardedUpdateSQL).
		WithArgs(int64(1), "sent", at, model.StatusSent.Rank(), "", "msg-1", "zaap-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(guardedUpdateSQL).
		WithArgs(int64(2), "failed", at, model.StatusFailed.Rank(), "invalid phone", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if ok, err := repo.MarkSent(context.Background(), 1, "msg-1", "zaap-1", at); err != nil || !ok {
		t.Fatalf("MarkSent = %v, %v", ok, err)
	}
	if ok, err := repo.MarkFailed(context.Background(), 2, "invalid phone", at); err != nil || !ok {
		t.Fatalf("MarkFailed = %v, %v", ok, err)
	}
}

func TestCampaignMessageRepository_AdvanceToPendingSkipsDB(t *testing.T) {
	t.Parallel()
	db, _ := newMockDB(t)
	repo := &CampaignMessageRepository{DB: db}

	for _, to := range []model.MessageStatus{model.StatusPending, "bogus"} {
		moved, err := repo.AdvanceStatus(context.Background(), 1, to, time.Now())
		if err != nil || moved {
			t.Fatalf("AdvanceStatus(%q) = %v, %v", to, moved, err)
		}
	}
}

func TestCampaignRepository_MarkRunning(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	markSQL := regexp.QuoteMeta("UPDATE campaigns SET status='running'")
	selectSQL := regexp.QuoteMeta("FROM campaigns WHERE id=$1")

	t.Run("flipped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := &CampaignRepository{DB: db}

		mock.ExpectExec(markSQL).WithArgs(int64(5), at).WillReturnResult(sqlmock.NewResult(0, 1))

		started, err := repo.MarkRunning(context.Background(), 5, at)
		if err != nil || !started {
			t.Fatalf("MarkRunning = %v, %v", started, err)
		}
	})

	t.Run("already running", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := &CampaignRepository{DB: db}

		mock.ExpectExec(markSQL).WithArgs(int64(5), at).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectSQL).WithArgs(int64(5)).WillReturnRows(
			sqlmock.NewRows([]string{
				"id", "name", "template_text", "status", "rate_limit", "audience_filter",
				"scheduled_at", "started_at", "completed_at", "created_at", "updated_at",
			}).AddRow(int64(5), "Promo", "Hi", "running", int64(30), "", nil, at, nil, at, at),
		)

		started, err := repo.MarkRunning(context.Background(), 5, at)
		if err != nil || started {
			t.Fatalf("MarkRunning = %v, %v", started, err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := &CampaignRepository{DB: db}

		mock.ExpectExec(markSQL).WithArgs(int64(5), at).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(selectSQL).WithArgs(int64(5)).WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.MarkRunning(context.Background(), 5, at)
		if !appErrors.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
	})
}

func TestCampaignRepository_CreateWithMessages(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO campaigns")).
		WithArgs("Promo", "Hi {{name}}", "draft", model.DefaultRateLimit, "", nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta("FROM UNNEST($3::bigint[]) AS contact_id")).
		WithArgs(int64(42), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	c := &model.Campaign{Name: "Promo", TemplateText: "Hi {{name}}"}
	if err := repo.CreateWithMessages(context.Background(), c, []int64{1, 2, 3}); err != nil {
		t.Fatalf("CreateWithMessages: %v", err)
	}
	if c.ID != 42 || c.Status != model.CampaignDraft {
		t.Fatalf("unexpected campaign %+v", c)
	}
}

func TestCampaignRepository_CreateWithMessagesRollsBack(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := &CampaignRepository{DB: db}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO campaigns")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta("FROM UNNEST")).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	c := &model.Campaign{Name: "Promo", TemplateText: "Hi"}
	if err := repo.CreateWithMessages(context.Background(), c, []int64{1}); err == nil {
		t.Fatal("expected error")
	}
}
