package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"meeting-scheduler-api/internal/model"
	"meeting-scheduler-api/internal/store"
)

func TestPostgres(t *testing.T) {
	_ = godotenv.Load("../../.env")
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	pg, err := store.Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pg.Close)
	if err := pg.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	suite(t, func(t *testing.T) store.Store { return pg })
	t.Run("FailedParticipantInsertLeavesNothing", func(t *testing.T) { testNoPartialWrite(t, pg) })
}

// An unknown participant id violates the foreign key after the meeting row
// was inserted; neither statement may survive.
func testNoPartialWrite(t *testing.T, st store.Store) {
	ctx := context.Background()
	org := seedUser(t, st, model.RoleOrganizer)
	p := seedUser(t, st, model.RoleParticipant)

	if _, err := st.Create(ctx, newMeeting(org, start, time.Hour, p, uuid.New().String())); err == nil {
		t.Fatal("expected create with unknown participant to fail")
	}
	ms, err := st.FindByParticipant(ctx, org)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 0 {
		t.Fatalf("create left %d meetings behind", len(ms))
	}

	id, err := st.Create(ctx, newMeeting(org, start, time.Hour, p))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	title := "renamed"
	unknown := []string{uuid.New().String()}
	_, err = st.Update(ctx, id, model.MeetingPatch{Title: &title, ParticipantIDs: &unknown})
	if err == nil {
		t.Fatal("expected update with unknown participant to fail")
	}
	got, err := st.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "meeting" || len(got.ParticipantIDs) != 1 || got.ParticipantIDs[0] != p {
		t.Errorf("update was partially applied: %+v", got)
	}
}
