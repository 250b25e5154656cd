// ABOUTME: Matrix frontend that syncs room messages into the turn engine
// ABOUTME: Keeps per-room order, remembers numbered options and uploads posters

package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/vistly/vistly-bot/internal/bot"
	"github.com/vistly/vistly-bot/internal/render"
)

// FrontendName is the Inbound.Frontend value for Matrix events
const FrontendName = "matrix"

// networkTimeout bounds each Matrix API call made for a reply
const networkTimeout = 30 * time.Second

// API is the subset of *mautrix.Client used to answer turns
type API interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON interface{}, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
	UploadBytesWithName(ctx context.Context, data []byte, contentType, fileName string) (*mautrix.RespMediaUpload, error)
	JoinRoomByID(ctx context.Context, roomID id.RoomID) (*mautrix.RespJoinRoom, error)
}

// Handler runs one conversation turn
type Handler interface {
	HandleEvent(ctx context.Context, in bot.Inbound) render.Instruction
}

// Fetcher downloads poster images
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Poster, error)
}

// Options configures a Frontend
type Options struct {
	// AllowedRooms limits the rooms served; empty serves every joined room
	AllowedRooms []string
	// Posters downloads entity posters; nil sends captions without images
	Posters Fetcher
	Logger  *slog.Logger
}

// Frontend bridges Matrix rooms to the engine
type Frontend struct {
	client  *mautrix.Client
	api     API
	self    id.UserID
	handler Handler
	allowed map[id.RoomID]bool
	posters Fetcher
	started time.Time
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[id.RoomID][]*event.Event
	options map[id.RoomID]options
	wg      sync.WaitGroup
}

// NewClient creates a mautrix client authenticated with an access token
func NewClient(homeserver, userID, accessToken string) (*mautrix.Client, error) {
	client, err := mautrix.NewClient(homeserver, id.UserID(userID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return client, nil
}

// New creates a frontend that syncs with client
func New(client *mautrix.Client, handler Handler, opts Options) *Frontend {
	f := newFrontend(client, client.UserID, handler, opts)
	f.client = client
	return f
}

func newFrontend(api API, self id.UserID, handler Handler, opts Options) *Frontend {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	allowed := make(map[id.RoomID]bool, len(opts.AllowedRooms))
	for _, r := range opts.AllowedRooms {
		allowed[id.RoomID(r)] = true
	}
	return &Frontend{
		api:     api,
		self:    self,
		handler: handler,
		allowed: allowed,
		posters: opts.Posters,
		started: time.Now(),
		logger:  opts.Logger.With("component", "matrix"),
		pending: make(map[id.RoomID][]*event.Event),
		options: make(map[id.RoomID]options),
	}
}

// Run syncs until ctx is cancelled, then waits for in-flight turns
func (f *Frontend) Run(ctx context.Context) error {
	if f.client == nil {
		return fmt.Errorf("matrix frontend has no client")
	}
	f.logger.Info("starting matrix frontend", "user_id", f.self, "allowed_rooms", len(f.allowed))
	defer f.wg.Wait()

	syncer, ok := f.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", f.client.Syncer)
	}
	syncer.OnEventType(event.EventMessage, func(_ context.Context, evt *event.Event) {
		f.handleMessage(ctx, evt)
	})
	syncer.OnEventType(event.StateMember, func(_ context.Context, evt *event.Event) {
		f.handleMembership(ctx, evt)
	})

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- f.client.SyncWithContext(ctx)
	}()

	select {
	case <-ctx.Done():
		f.logger.Info("stopping matrix frontend")
		return nil
	case err := <-syncErr:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

func (f *Frontend) roomAllowed(room id.RoomID) bool {
	return len(f.allowed) == 0 || f.allowed[room]
}

// handleMembership accepts invites to allowed rooms
func (f *Frontend) handleMembership(ctx context.Context, evt *event.Event) {
	content, ok := evt.Content.Parsed.(*event.MemberEventContent)
	if !ok || content.Membership != event.MembershipInvite || evt.GetStateKey() != f.self.String() {
		return
	}
	if !f.roomAllowed(evt.RoomID) {
		f.logger.Debug("ignoring invite to non-allowed room", "room", evt.RoomID)
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := f.api.JoinRoomByID(callCtx, evt.RoomID); err != nil {
		f.logger.Warn("joining room", "room", evt.RoomID, "error", err)
		return
	}
	f.logger.Info("joined room", "room", evt.RoomID, "inviter", evt.Sender)
}

// handleMessage filters sync events and queues them for their room.
// Events from before startup are history replayed by the initial sync.
func (f *Frontend) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == f.self || !f.roomAllowed(evt.RoomID) {
		return
	}
	if evt.Timestamp < f.started.UnixMilli() {
		return
	}
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType == event.MsgNotice {
		return
	}
	if content.RelatesTo != nil && content.RelatesTo.Type == event.RelReplace {
		return
	}

	f.mu.Lock()
	queue, running := f.pending[evt.RoomID]
	f.pending[evt.RoomID] = append(queue, evt)
	f.mu.Unlock()

	if !running {
		f.wg.Add(1)
		go f.drain(ctx, evt.RoomID)
	}
}

func (f *Frontend) drain(ctx context.Context, room id.RoomID) {
	defer f.wg.Done()
	for {
		f.mu.Lock()
		queue := f.pending[room]
		if len(queue) == 0 {
			delete(f.pending, room)
			f.mu.Unlock()
			return
		}
		evt := queue[0]
		f.pending[room] = queue[1:]
		f.mu.Unlock()

		if ctx.Err() == nil {
			f.process(ctx, evt)
		}
	}
}

func (f *Frontend) currentOptions(room id.RoomID) options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options[room]
}

func (f *Frontend) setOptions(room id.RoomID, opts options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(opts) == 0 {
		delete(f.options, room)
		return
	}
	f.options[room] = opts
}

func (f *Frontend) process(ctx context.Context, evt *event.Event) {
	content := evt.Content.AsMessage()
	body := ""
	switch content.MsgType {
	case event.MsgText, event.MsgEmote:
		body = content.Body
	}

	name := evt.Sender.String()
	if local, _, err := evt.Sender.Parse(); err == nil && local != "" {
		name = local
	}

	in := bot.Inbound{
		Frontend:       FrontendName,
		ConversationID: evt.RoomID.String(),
		EventID:        evt.ID.String(),
		ExternalUserID: evt.Sender.String(),
		Username:       name,
		Name:           name,
		Event:          toEvent(body, f.currentOptions(evt.RoomID)),
	}
	f.logger.Debug("received message", "room", evt.RoomID, "sender", evt.Sender)

	reply := f.handler.HandleEvent(ctx, in)
	f.deliver(ctx, evt.RoomID, reply)
}

// deliver sends reply to room. Acknowledgements keep the previous options
// since the screen they belong to is still current.
func (f *Frontend) deliver(ctx context.Context, room id.RoomID, reply render.Instruction) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), networkTimeout)
	defer cancel()

	switch reply.Kind {
	case render.NoOp:
		return
	case render.Acknowledge:
		if reply.Notice != "" {
			f.send(ctx, room, notice(reply.Notice))
		}
		return
	}

	if reply.Notice != "" {
		f.send(ctx, room, notice(reply.Notice))
	}
	if reply.Kind == render.ShowMediaWithCaption && reply.MediaURL != "" && f.posters != nil {
		if err := f.sendPoster(ctx, room, reply.MediaURL); err != nil {
			f.logger.Warn("poster not sent", "room", room, "url", reply.MediaURL, "error", err)
		}
	}

	content, opts := message(reply)
	f.setOptions(room, opts)
	f.send(ctx, room, content)
}

func (f *Frontend) sendPoster(ctx context.Context, room id.RoomID, rawURL string) error {
	p, err := f.posters.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	up, err := f.api.UploadBytesWithName(ctx, p.Data, p.ContentType, p.Name)
	if err != nil {
		return fmt.Errorf("uploading poster: %w", err)
	}
	f.send(ctx, room, &event.MessageEventContent{
		MsgType: event.MsgImage,
		Body:    p.Name,
		URL:     up.ContentURI.CUString(),
		Info:    &event.FileInfo{MimeType: p.ContentType, Size: len(p.Data)},
	})
	return nil
}

func (f *Frontend) send(ctx context.Context, room id.RoomID, content *event.MessageEventContent) {
	if _, err := f.api.SendMessageEvent(ctx, room, event.EventMessage, content); err != nil {
		f.logger.Error("failed to send message", "room", room, "error", err)
	}
}
