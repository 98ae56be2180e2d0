package memory

import (
	"testing"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/domain/domaintest"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	session := app.NewSession("session-1", domain.NewID(), domaintest.ClinicalPaper(2))
	store.Put(session)
	if got, ok := store.Get("session-1"); !ok || got != session {
		t.Fatalf("expected session present")
	}
	store.Touch(session)
	if store.Len() != 1 {
		t.Fatalf("expected one session, got %d", store.Len())
	}
	if listed := store.List(); len(listed) != 1 || listed[0] != session {
		t.Fatalf("expected list to return the held session, got %d", len(listed))
	}

	store.Delete("session-1")
	if _, ok := store.Get("session-1"); ok {
		t.Fatalf("expected session removed")
	}
}
