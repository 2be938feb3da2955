package match

import (
	"chess-arena/internal/game"
)

// DisconnectState tracks one color's pending disconnection penalty. The
// cushion is the forgiveness delay before the penalty clock starts; once the
// auto-resign timer is armed, TimeToAutoLoss and WasByChoice are set with it
// and the three are cleared together.
type DisconnectState struct {
	cushion        Timer
	autoResign     Timer
	TimeToAutoLoss *int64
	WasByChoice    *bool
}

// armed reports whether any stage of the penalty is pending.
func (d *DisconnectState) armed() bool {
	return d.cushion != nil || d.autoResign != nil
}

// reset stops both timers and clears the record.
func (d *DisconnectState) reset() {
	stopTimer(&d.cushion)
	stopTimer(&d.autoResign)
	d.TimeToAutoLoss = nil
	d.WasByChoice = nil
}

// PlayerData is the per-color seat state of a live game.
type PlayerData struct {
	Identity     game.PlayerIdentity
	Conn         Conn // nil while the player is away
	LastOfferPly *int
	Disconnect   DisconnectState
}
