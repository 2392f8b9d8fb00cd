// Package dhcpwatch records DHCPv6 traffic seen on an interface into
// per-client histories. It never answers a client.
package dhcpwatch

import (
	"context"
	"net"
	"strings"

	"github.com/insomniacslk/dhcp/dhcpv6"
	"github.com/insomniacslk/dhcp/dhcpv6/server6"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/DeterminateSystems/ringbuffer/internal/history"
)

// Recorder stores one event under key.
type Recorder interface {
	Record(ctx context.Context, key, kind, detail string) (history.Event, error)
}

type Watcher struct {
	recorder Recorder
	logger   *zap.Logger
	ctx      context.Context
}

func New(recorder Recorder, logger *zap.Logger) *Watcher {
	return &Watcher{
		recorder: recorder,
		logger:   logger.Named("dhcpwatch"),
		ctx:      context.Background(),
	}
}

// Handler implements a server6.Handler.
func (w *Watcher) Handler(conn net.PacketConn, peer net.Addr, m dhcpv6.DHCPv6) {
	if err := w.handleMsg(peer, m); err != nil {
		w.logger.Info("skipping DHCPv6 message", zap.Stringer("peer", peer), zap.Error(err))
	}
}

func (w *Watcher) handleMsg(peer net.Addr, req dhcpv6.DHCPv6) error {
	msg, err := req.GetInnerMessage()
	if err != nil {
		return errors.Wrap(err, "DHCPv6 get inner message")
	}

	mac, err := dhcpv6.ExtractMAC(req)
	if err != nil {
		return errors.Wrap(err, "no MAC address in message")
	}

	kind := strings.ToLower(msg.Type().String())
	if _, err := w.recorder.Record(w.ctx, mac.String(), kind, msg.TransactionID.String()); err != nil {
		return errors.Wrapf(err, "recording %s from %s", kind, mac)
	}

	w.logger.Debug("recorded", zap.String("mac", mac.String()), zap.String("kind", kind))
	return nil
}

// Serve listens for DHCPv6 traffic on iface until ctx is done.
func (w *Watcher) Serve(ctx context.Context, iface string) error {
	w.ctx = ctx

	laddr := &net.UDPAddr{
		IP:   net.IPv6unspecified,
		Port: dhcpv6.DefaultServerPort,
	}
	server, err := server6.NewServer(iface, laddr, w.Handler)
	if err != nil {
		return errors.Wrapf(err, "starting DHCPv6 listener on %s", iface)
	}

	w.logger.Info("listening via UDP", zap.String("interface", iface), zap.Stringer("addr", laddr))

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	if err := server.Serve(); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "serving DHCPv6")
	}
	return nil
}
