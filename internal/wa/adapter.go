package wa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter implements Client on top of whatsmeow. Each adapter owns a
// per-number credential store under <dataDir>/<numberID>/session.db, so a
// relaunched process resumes previously authenticated sessions.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *zap.Logger
	numberID  string
	dir       string

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewFactory returns a Factory producing whatsmeow-backed clients rooted at
// dataDir.
func NewFactory(dataDir string, logger *zap.Logger) Factory {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("WAFleet", [3]uint32{0, 1, 0})

	return func(ctx context.Context, numberID string) (Client, error) {
		return NewAdapter(ctx, dataDir, numberID, logger)
	}
}

// NewAdapter creates a whatsmeow client for the given number.
func NewAdapter(ctx context.Context, dataDir, numberID string, logger *zap.Logger) (*Adapter, error) {
	dir := filepath.Join(dataDir, numberID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(dir, "session.db")),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)
	// Reconnection is owned by the session lifecycle manager.
	client.EnableAutoReconnect = false

	a := &Adapter{
		client:    client,
		container: container,
		logger:    logger.With(zap.String("number_id", numberID)),
		numberID:  numberID,
		dir:       dir,
		events:    make(chan Event, 256),
		done:      make(chan struct{}),
	}
	client.AddEventHandler(a.handleEvent)
	return a, nil
}

// SessionDir returns the directory holding this number's credential store
// and QR artifact.
func (a *Adapter) SessionDir() string {
	return a.dir
}

// IsLoggedIn reports whether the credential store holds a paired device.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Start connects to WhatsApp. Without stored credentials it begins the QR
// pairing flow first; GetQRChannel must be called before Connect.
func (a *Adapter) Start(ctx context.Context) error {
	if a.IsLoggedIn() {
		a.logger.Info("resuming authenticated session")
		return a.client.Connect()
	}

	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	go a.pumpQR(qrChan)
	return nil
}

func (a *Adapter) pumpQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			a.emit(Event{Type: EventQR, QRToken: item.Code})
		case "success":
			// events.Connected follows; nothing to emit here.
			return
		case "timeout":
			a.emit(Event{Type: EventAuthFailure, Reason: "qr timeout"})
			return
		default:
			if item.Error != nil {
				a.emit(Event{Type: EventAuthFailure, Reason: item.Error.Error()})
				return
			}
		}
	}
}

func (a *Adapter) handleEvent(raw any) {
	switch evt := raw.(type) {
	case *events.Connected:
		a.emit(Event{Type: EventReady})
	case *events.LoggedOut:
		a.emit(Event{Type: EventAuthFailure, Reason: evt.Reason.String()})
	case *events.Disconnected:
		a.emit(Event{Type: EventDisconnected, Reason: "stream closed"})
	case *events.Message:
		a.emit(Event{Type: EventMessage, Message: ParseMessage(evt)})
	}
}

func (a *Adapter) emit(evt Event) {
	select {
	case <-a.done:
	case a.events <- evt:
	}
}

// Events returns the adapter's event stream.
func (a *Adapter) Events() <-chan Event {
	return a.events
}

// SendText sends a plain-text message. Returns the server message id.
func (a *Adapter) SendText(ctx context.Context, chatJID, body string) (string, error) {
	to, err := types.ParseJID(chatJID)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// Destroy tears the connection down. Idempotent.
func (a *Adapter) Destroy() {
	a.closeOnce.Do(func() {
		close(a.done)
		a.client.Disconnect()
		_ = a.container.Close()
		a.logger.Info("client destroyed")
	})
}
