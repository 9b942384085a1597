package provisioning

import (
	"context"
	"testing"

	"github.com/tjfontaine/agent-launcher/internal/testutil"
)

func TestClient_ProvisioningCassette(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "provision_happy_path")
	defer cleanup()

	c, err := NewClient("http://api.test", WithHTTPClient(testutil.VCRHTTPClient(recorder)))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	room, err := c.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if room.RoomURL != "https://t.co/r" || room.Token != "tok" {
		t.Errorf("CreateRoom() = %+v", room)
	}

	creds, err := c.StartAgent(context.Background(), room.RoomURL, room.Token, "casual")
	if err != nil {
		t.Fatalf("StartAgent() error = %v", err)
	}
	if creds.RoomURL != "https://t.co/r" || creds.Token != "tok2" {
		t.Errorf("StartAgent() = %+v", creds)
	}
}

func TestClient_RejectedCassette(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "provision_quota_exceeded")
	defer cleanup()

	c, _ := NewClient("http://api.test/", WithHTTPClient(testutil.VCRHTTPClient(recorder)))

	_, err := c.CreateRoom(context.Background())
	if err == nil {
		t.Fatal("CreateRoom() expected error")
	}
	if err.Error() != "quota exceeded" {
		t.Errorf("CreateRoom() error = %q, want %q", err.Error(), "quota exceeded")
	}
}
