package link

import (
	"time"

	"github.com/devlink-robotics/devlink-go/pkg/log"
	"github.com/devlink-robotics/devlink-go/pkg/wire"
)

// RequestVersion sends VERSION_SWITCH for v in the current layout. The
// link keeps the old layout, and refuses other sends, until HandleAck or
// ExpireSwitch resolves the request.
func (l *Link) RequestVersion(v wire.Version, seq uint32, sourceTimeUs uint64, now time.Time) error {
	req, err := l.negotiator.Request(v, now)
	if err != nil {
		return err
	}
	if err := l.Send(req.Type(), seq, sourceTimeUs, req.Encode()); err != nil {
		l.negotiator.Expire(now, 0)
		return err
	}
	l.LogState(log.StateEntityVersion, l.Version().String(), "PENDING_"+v.String(), "local request")
	return nil
}

// HandleAck resolves a pending request with the peer's VERSION_ACK.
func (l *Link) HandleAck(ack wire.VersionAck) (wire.Version, error) {
	old := l.Version()
	v, err := l.negotiator.HandleAck(ack)
	if err != nil {
		l.LogState(log.StateEntityVersion, old.String(), old.String(), err.Error())
		return v, err
	}
	l.LogState(log.StateEntityVersion, old.String(), v.String(), "peer ack")
	if l.opts.Logger != nil {
		l.opts.Logger.Info("envelope version switched", "link_id", l.id, "from", old, "to", v)
	}
	return v, nil
}

// AnswerSwitch replies to the peer's VERSION_SWITCH. The ack goes out in
// the current layout and both directions move to the requested version
// before any other frame can be sent.
func (l *Link) AnswerSwitch(req wire.VersionSwitch, seq uint32, sourceTimeUs uint64) (wire.VersionAck, error) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	old := l.builder.Version()
	ack, commit := l.negotiator.HandleRequest(req)
	if err := l.sendLocked(old, ack.Type(), seq, sourceTimeUs, ack.Encode()); err != nil {
		return ack, err
	}
	commit()

	if now := l.builder.Version(); now != old {
		l.LogState(log.StateEntityVersion, old.String(), now.String(), "peer request")
		if l.opts.Logger != nil {
			l.opts.Logger.Info("envelope version switched", "link_id", l.id, "from", old, "to", now)
		}
	}
	return ack, nil
}

// ExpireSwitch abandons a request pending longer than timeout. The peer
// may have switched and lost its ack on the way back, so a VERSION_SWITCH
// back to the active version is sent in the abandoned layout: a peer that
// switched parses it and returns, a peer that did not discards it as a
// length error. Reports whether a request was abandoned.
func (l *Link) ExpireSwitch(now time.Time, timeout time.Duration, seq uint32, sourceTimeUs uint64) (bool, error) {
	abandoned, pending := l.negotiator.Pending()
	if !pending || !l.negotiator.Expire(now, timeout) {
		return false, nil
	}

	active := l.Version()
	l.LogState(log.StateEntityVersion, "PENDING_"+abandoned.String(), active.String(), "ack timeout")
	if l.opts.Logger != nil {
		l.opts.Logger.Warn("version switch timed out", "link_id", l.id, "requested", abandoned, "active", active)
	}

	back := wire.VersionSwitch{Version: active}
	return true, l.SendVersion(abandoned, back.Type(), seq, sourceTimeUs, back.Encode())
}
