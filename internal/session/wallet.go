package session

import "sync/atomic"

// Wallet is the connected signing account. Connection management lives
// outside this module.
type Wallet interface {
	Account() string
	Connected() bool
}

// StaticWallet is a configured account whose connection state is toggled
// by the host.
type StaticWallet struct {
	account   string
	connected atomic.Bool
}

var _ Wallet = (*StaticWallet)(nil)

// NewStaticWallet returns a wallet that is connected when account is set
func NewStaticWallet(account string) *StaticWallet {
	w := &StaticWallet{account: account}
	w.connected.Store(account != "")
	return w
}

func (w *StaticWallet) Account() string {
	return w.account
}

func (w *StaticWallet) Connected() bool {
	return w.connected.Load()
}

// SetConnected changes the connection state
func (w *StaticWallet) SetConnected(connected bool) {
	w.connected.Store(connected && w.account != "")
}
