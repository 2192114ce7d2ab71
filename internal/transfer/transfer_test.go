package transfer

import (
	"context"
	"testing"

	"github.com/dasein108/cex-arbitrage-sub002/internal/exchange"
	"github.com/dasein108/cex-arbitrage-sub002/internal/venue/mock"
)

func TestTransferAsset_AndPoll(t *testing.T) {
	source := mock.New("source-ex", false)
	dest := mock.New("dest-ex", false)
	mgr := New(map[string]exchange.Handle{"source-ex": source, "dest-ex": dest})

	req, err := mgr.TransferAsset(context.Background(), "BTC", "source-ex", "dest-ex", 1.5, 50000)
	if err != nil {
		t.Fatalf("TransferAsset: %v", err)
	}
	if !req.InProgress || req.Completed {
		t.Fatalf("expected freshly submitted transfer to be in-progress, got %+v", req)
	}

	if err := mgr.UpdateTransferRequest(context.Background(), req); err != nil {
		t.Fatalf("UpdateTransferRequest: %v", err)
	}
	if req.Completed {
		t.Fatalf("transfer should not complete before the venue reports it done")
	}

	source.CompleteWithdrawal(req.VenueTransferID)
	if err := mgr.UpdateTransferRequest(context.Background(), req); err != nil {
		t.Fatalf("UpdateTransferRequest after completion: %v", err)
	}
	if !req.Completed || req.InProgress {
		t.Fatalf("expected transfer to be marked completed, got %+v", req)
	}
}

func TestTransferAsset_UnknownVenue(t *testing.T) {
	mgr := New(map[string]exchange.Handle{})
	if _, err := mgr.TransferAsset(context.Background(), "BTC", "nowhere", "dest", 1, 100); err == nil {
		t.Fatalf("expected error for unknown source venue")
	}
}
