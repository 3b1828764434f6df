package app

import (
	"testing"

	"cosmotablas-service/internal/domain"
)

func TestBoardHubDropsStaleBoardsForSlowReaders(t *testing.T) {
	hub := NewBoardHub()
	ch, cancel := hub.Subscribe(3, domain.TableBoard{TableNumber: 3})
	defer cancel()

	// Overfill the buffer; the latest board must still arrive.
	for i := 0; i < 20; i++ {
		hub.Publish(domain.TableBoard{TableNumber: 3, Records: make([]domain.AttemptRecord, i)})
	}

	var last domain.TableBoard
	for len(ch) > 0 {
		last = <-ch
	}
	if len(last.Records) != 19 {
		t.Fatalf("expected the newest board last, got %d records", len(last.Records))
	}
}

func TestBoardHubCancel(t *testing.T) {
	hub := NewBoardHub()
	ch, cancel := hub.Subscribe(5, domain.TableBoard{TableNumber: 5})
	if !hub.HasSubscribers(5) {
		t.Fatalf("expected a subscriber")
	}
	<-ch

	cancel()
	cancel()
	if hub.HasSubscribers(5) {
		t.Fatalf("expected subscriber removed")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed")
	}

	// Publishing with no subscribers is a no-op.
	hub.Publish(domain.TableBoard{TableNumber: 5})
}
