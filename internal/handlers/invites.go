package handlers

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chess-arena/internal/game"
	"chess-arena/internal/match"
)

// Inbound actions on the "invites" route.
const (
	ActionInvitesSubscribe   = "subscribe"
	ActionInvitesUnsubscribe = "unsubscribe"
	ActionCreateInvite       = "createinvite"
	ActionCancelInvite       = "cancelinvite"
	ActionAcceptInvite       = "acceptinvite"
)

// Outbound actions on the "invites" route.
const (
	MsgInviteList = "invitelist"
	MsgGameCount  = "gamecount"
)

// Notification keys for invite failures.
const (
	KeyInviteInvalid       = "invites.invalid"
	KeyInviteNeedsIdentity = "invites.session_required"
	KeyInviteNeedsAccount  = "invites.rated_requires_account"
	KeyInviteBusy          = "invites.already_in_game"
	KeyInviteGone          = "invites.invite_gone"
	KeyInviteOwn           = "invites.cannot_accept_own"
	KeyInviteFailed        = "invites.game_start_failed"
)

// CreateInvitePayload is the inbound createinvite value. Color is the seat the
// owner wants: "white", "black", or empty for a coin flip.
type CreateInvitePayload struct {
	Variant   string `json:"variant"`
	Clock     string `json:"clock"`
	Color     string `json:"color,omitempty"`
	Rated     bool   `json:"rated"`
	Publicity string `json:"publicity,omitempty"`
}

// InviteRefPayload names an invite by id for cancel/accept.
type InviteRefPayload struct {
	ID string `json:"id"`
}

// InviteInfo is one listed invite.
type InviteInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Member    bool   `json:"member"`
	Variant   string `json:"variant"`
	Clock     string `json:"clock"`
	Color     string `json:"color,omitempty"`
	Rated     bool   `json:"rated"`
	Publicity string `json:"publicity"`
}

// InviteListPayload is the invitelist body.
type InviteListPayload struct {
	Invites []InviteInfo `json:"invites"`
}

// GameCountPayload is the gamecount body.
type GameCountPayload struct {
	Count int `json:"count"`
}

// InviteConn is what the invite list needs from a transport client: the match
// handle plus the invites route.
type InviteConn interface {
	match.Conn
	SendInvites(action string, value any)
}

// GameStarter is the slice of the coordinator the invite manager drives.
type GameStarter interface {
	CreateGame(ctx context.Context, p match.GameParams) (*match.Match, error)
}

type invite struct {
	id        string
	owner     game.PlayerIdentity
	ownerConn InviteConn
	variant   string
	clock     game.TimeControl
	color     string // owner's seat preference, empty for coin flip
	rated     bool
	publicity match.Publicity
}

func (inv *invite) info() InviteInfo {
	return InviteInfo{
		ID:        inv.id,
		Name:      inv.owner.DisplayName(),
		Member:    inv.owner.IsMember(),
		Variant:   inv.variant,
		Clock:     inv.clock.String(),
		Color:     inv.color,
		Rated:     inv.rated,
		Publicity: string(inv.publicity),
	}
}

// InviteManager holds the open invites and the sockets watching them. Each
// identity owns at most one invite; accepting hands both seats to the
// coordinator. It is also the fan-out point for the active-game counter.
type InviteManager struct {
	mu          sync.Mutex
	invites     map[string]*invite    // invite id -> invite
	byOwner     map[string]string     // identity key -> invite id
	subscribers map[string]InviteConn // conn id -> conn

	coord    GameStarter
	index    *match.ActivePlayersIndex
	registry *match.Registry
	variants map[string]bool
	log      *zap.Logger
}

func NewInviteManager(coord GameStarter, index *match.ActivePlayersIndex, registry *match.Registry, variants []string, logger *zap.Logger) *InviteManager {
	m := &InviteManager{
		invites:     make(map[string]*invite),
		byOwner:     make(map[string]string),
		subscribers: make(map[string]InviteConn),
		coord:       coord,
		index:       index,
		registry:    registry,
		variants:    make(map[string]bool, len(variants)),
		log:         logger.Named("invites"),
	}
	for _, v := range variants {
		m.variants[v] = true
	}
	registry.OnCountChange(m.broadcastGameCount)
	return m
}

// Handle dispatches one inbound message on the invites route.
func (im *InviteManager) Handle(ctx context.Context, conn InviteConn, action string, value json.RawMessage) {
	switch action {
	case ActionInvitesSubscribe:
		im.subscribe(conn)
	case ActionInvitesUnsubscribe:
		im.unsubscribe(conn)
	case ActionCreateInvite:
		im.create(conn, value)
	case ActionCancelInvite:
		im.cancel(conn, value)
	case ActionAcceptInvite:
		im.accept(ctx, conn, value)
	default:
		conn.SendGeneral(match.MsgPrintError, match.PrintErrorPayload{Text: "unknown invites action: " + action})
	}
}

// subscribe starts streaming the invite list and game count to the socket.
func (im *InviteManager) subscribe(conn InviteConn) {
	im.mu.Lock()
	im.subscribers[conn.ID()] = conn
	list := im.listFor(conn.Identity())
	im.mu.Unlock()

	conn.SendInvites(MsgInviteList, list)
	conn.SendInvites(MsgGameCount, GameCountPayload{Count: im.registry.Count()})
}

func (im *InviteManager) unsubscribe(conn InviteConn) {
	im.mu.Lock()
	delete(im.subscribers, conn.ID())
	im.mu.Unlock()
}

func (im *InviteManager) create(conn InviteConn, value json.RawMessage) {
	identity := conn.Identity()
	if identity.Zero() {
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteNeedsIdentity})
		return
	}

	var p CreateInvitePayload
	if err := json.Unmarshal(value, &p); err != nil {
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteInvalid})
		return
	}
	if !im.variants[p.Variant] {
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteInvalid})
		return
	}
	tc, err := game.ParseTimeControl(p.Clock)
	if err != nil {
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteInvalid})
		return
	}
	switch p.Color {
	case "", string(game.White), string(game.Black):
	default:
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteInvalid})
		return
	}
	publicity := match.PublicityPublic
	switch p.Publicity {
	case "", string(match.PublicityPublic):
	case string(match.PublicityPrivate):
		publicity = match.PublicityPrivate
	default:
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteInvalid})
		return
	}
	if p.Rated && !identity.IsMember() {
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteNeedsAccount})
		return
	}
	if im.index.IsBusy(identity) {
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteBusy})
		return
	}

	inv := &invite{
		id:        uuid.NewString(),
		owner:     identity,
		ownerConn: conn,
		variant:   p.Variant,
		clock:     tc,
		color:     p.Color,
		rated:     p.Rated,
		publicity: publicity,
	}

	im.mu.Lock()
	// One open invite per identity; a new one replaces the old.
	if old, ok := im.byOwner[identity.Key()]; ok {
		delete(im.invites, old)
	}
	im.invites[inv.id] = inv
	im.byOwner[identity.Key()] = inv.id
	// Creating an invite implies watching the list.
	im.subscribers[conn.ID()] = conn
	im.broadcastListLocked()
	im.mu.Unlock()

	im.log.Info("invite created",
		zap.String("inviteID", inv.id),
		zap.String("owner", identity.Key()),
		zap.String("variant", inv.variant),
		zap.String("clock", inv.clock.String()),
		zap.Bool("rated", inv.rated))
}

func (im *InviteManager) cancel(conn InviteConn, value json.RawMessage) {
	var p InviteRefPayload
	if err := json.Unmarshal(value, &p); err != nil {
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteInvalid})
		return
	}

	im.mu.Lock()
	inv, ok := im.invites[p.ID]
	if !ok || !inv.owner.Equal(conn.Identity()) {
		im.mu.Unlock()
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteGone})
		return
	}
	im.removeLocked(inv)
	im.broadcastListLocked()
	im.mu.Unlock()
}

func (im *InviteManager) accept(ctx context.Context, conn InviteConn, value json.RawMessage) {
	accepter := conn.Identity()
	if accepter.Zero() {
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteNeedsIdentity})
		return
	}

	var p InviteRefPayload
	if err := json.Unmarshal(value, &p); err != nil {
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteInvalid})
		return
	}

	im.mu.Lock()
	inv, ok := im.invites[p.ID]
	if !ok {
		im.mu.Unlock()
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteGone})
		return
	}
	if inv.owner.Equal(accepter) {
		im.mu.Unlock()
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteOwn})
		return
	}
	if inv.rated && !accepter.IsMember() {
		im.mu.Unlock()
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteNeedsAccount})
		return
	}
	if im.index.IsBusy(accepter) {
		im.mu.Unlock()
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteBusy})
		return
	}
	if im.index.IsBusy(inv.owner) {
		// The owner slipped into a game some other way. Drop the stale invite.
		im.removeLocked(inv)
		im.broadcastListLocked()
		im.mu.Unlock()
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteGone})
		return
	}
	// Claim the invite, and the accepter's own open invite with it, before
	// releasing the lock: a concurrent accept must not see either.
	im.removeLocked(inv)
	if other, ok := im.byOwner[accepter.Key()]; ok {
		if otherInv := im.invites[other]; otherInv != nil {
			im.removeLocked(otherInv)
		}
	}
	im.mu.Unlock()

	ownerColor := inv.color
	if ownerColor == "" {
		if rand.Intn(2) == 0 {
			ownerColor = string(game.White)
		} else {
			ownerColor = string(game.Black)
		}
	}
	seats := map[game.Color]match.Seat{}
	if ownerColor == string(game.White) {
		seats[game.White] = match.Seat{Identity: inv.owner, Conn: inv.ownerConn}
		seats[game.Black] = match.Seat{Identity: accepter, Conn: conn}
	} else {
		seats[game.White] = match.Seat{Identity: accepter, Conn: conn}
		seats[game.Black] = match.Seat{Identity: inv.owner, Conn: inv.ownerConn}
	}

	m, err := im.coord.CreateGame(ctx, match.GameParams{
		Variant:     inv.variant,
		TimeControl: inv.clock,
		Rated:       inv.rated,
		Publicity:   inv.publicity,
		Seats:       seats,
	})
	if err != nil {
		im.log.Error("game start failed", zap.String("inviteID", inv.id), zap.Error(err))
		// Put the invite back so the owner does not have to recreate it.
		im.mu.Lock()
		im.invites[inv.id] = inv
		im.byOwner[inv.owner.Key()] = inv.id
		im.broadcastListLocked()
		im.mu.Unlock()
		conn.SendGeneral(match.MsgNotifyError, match.NotifyPayload{Key: KeyInviteFailed})
		return
	}

	im.log.Info("invite accepted",
		zap.String("inviteID", inv.id),
		zap.Int64("gameID", m.ID),
		zap.String("owner", inv.owner.Key()),
		zap.String("accepter", accepter.Key()))

	im.mu.Lock()
	im.broadcastListLocked()
	im.broadcastGameCountLocked(im.registry.Count())
	im.mu.Unlock()
}

// ClientClosed drops the socket from the subscriber set and cancels any
// invite it owned. Called by the hub on the closure path.
func (im *InviteManager) ClientClosed(conn InviteConn) {
	im.mu.Lock()
	defer im.mu.Unlock()

	delete(im.subscribers, conn.ID())

	id, ok := im.byOwner[conn.Identity().Key()]
	if !ok {
		return
	}
	inv := im.invites[id]
	// Another socket with the same identity may own the invite now.
	if inv == nil || inv.ownerConn.ID() != conn.ID() {
		return
	}
	im.removeLocked(inv)
	im.broadcastListLocked()
}

func (im *InviteManager) removeLocked(inv *invite) {
	delete(im.invites, inv.id)
	if im.byOwner[inv.owner.Key()] == inv.id {
		delete(im.byOwner, inv.owner.Key())
	}
}

// listFor builds the personalized invite list: every public invite plus the
// viewer's own invite, private or not.
func (im *InviteManager) listFor(viewer game.PlayerIdentity) InviteListPayload {
	list := InviteListPayload{Invites: make([]InviteInfo, 0, len(im.invites))}
	for _, inv := range im.invites {
		if inv.publicity == match.PublicityPublic || inv.owner.Equal(viewer) {
			list.Invites = append(list.Invites, inv.info())
		}
	}
	return list
}

func (im *InviteManager) broadcastListLocked() {
	for _, conn := range im.subscribers {
		conn.SendInvites(MsgInviteList, im.listFor(conn.Identity()))
	}
}

// broadcastGameCount fans the active-game counter out to every subscriber.
// Registered as the registry's count listener.
func (im *InviteManager) broadcastGameCount(count int) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.broadcastGameCountLocked(count)
}

func (im *InviteManager) broadcastGameCountLocked(count int) {
	for _, conn := range im.subscribers {
		conn.SendInvites(MsgGameCount, GameCountPayload{Count: count})
	}
}
