package sequencer

import (
	"github.com/kamma-cc/aeron/collab"
	"github.com/kamma-cc/aeron/session"
	"github.com/kamma-cc/aeron/wire"
)

// dispatchIngress decodes one client frame and routes it to the matching
// handler (§4.3).
func (a *Agent) dispatchIngress(buf []byte) error {
	msg := new(wire.IngressMessage)
	if err := wire.Unmarshal(buf, msg); err != nil {
		a.logger.Warnw("failed to decode ingress frame", a.fields("error", err)...)
		return nil // malformed frames are dropped, not fatal
	}
	now := a.cachedNowMs
	switch msg.Kind {
	case wire.IngressConnect:
		a.onSessionConnect(msg.CorrelationId, msg.ResponseStreamId, msg.ResponseChan, msg.Credentials, now)
		return nil
	case wire.IngressChallengeResponse:
		a.onChallengeResponse(msg.CorrelationId, msg.SessionId, msg.Credentials, now)
		return nil
	case wire.IngressSessionMessage:
		return a.onSessionMessage(msg.Payload, msg.SessionId, msg.CorrelationId, now)
	case wire.IngressKeepAlive:
		a.onKeepAlive(msg.SessionId, now)
		return nil
	case wire.IngressSessionClose:
		a.onSessionClose(msg.SessionId, now)
		return nil
	case wire.IngressAdminQuery:
		a.onAdminQuery(msg.SessionId, msg.AdminQuery, now)
		return nil
	default:
		return nil
	}
}

// onSessionConnect allocates a session id and places the new session in
// pending or rejected depending on the concurrency cap (§4.3).
func (a *Agent) onSessionConnect(correlationID int64, streamID int32, responseChan string, credentials []byte, nowMs int64) {
	id := a.sessions.NextSessionID()
	s := session.New(id, correlationID, streamID, responseChan, nowMs)
	s.State = session.Init

	if pub, err := a.col.Transport.AddPublication(responseChan, streamID); err == nil {
		s.ResponsePub = pub
	} else {
		a.logger.Warnw("failed to open session response publication", a.fields("session_id", id, "error", err)...)
	}

	a.logger.Infow("session connect", a.fields("session_id", id, "correlation_id", correlationID)...)

	if a.sessions.TotalLiveCount() < a.opts.MaxConcurrentSessions {
		a.sessions.AddPending(s)
		a.col.Authenticator.OnConnectRequest(id, credentials, nowMs)
		return
	}
	s.State = session.Rejected
	s.RejectReason = session.RejectSessionLimit
	a.sessions.AddPending(s)
	idx := len(a.sessions.Pending()) - 1
	a.sessions.MoveToRejected(idx)
}

// pumpPendingSessions drives the auth handshake for every pending session,
// newest-first with safe swap-remove (§4.3, §9).
func (a *Agent) pumpPendingSessions(nowMs int64) int {
	work := 0
	pending := a.sessions.Pending()
	for i := len(pending) - 1; i >= 0; i-- {
		if i >= len(a.sessions.Pending()) {
			continue // an earlier swap-remove shortened the slice under us
		}
		s := a.sessions.Pending()[i]
		switch {
		case (s.State == session.Init || s.State == session.Connected) && s.ResponsePub != nil && s.ResponsePub.IsConnected():
			s.State = session.Connected
			a.col.Authenticator.OnProcessConnectedSession(s.NewProxy(), nowMs)
			work++
		case s.State == session.Challenged && s.ResponsePub != nil && s.ResponsePub.IsConnected():
			a.col.Authenticator.OnProcessChallengedSession(s.NewProxy(), nowMs)
			a.tryEmitChallenge(s)
			work++
		}

		switch {
		case s.State == session.Authenticated:
			a.openAuthenticatedSession(i, s)
			work++
		case s.State == session.Rejected:
			a.sessions.MoveToRejected(i)
			work++
		case nowMs-s.TimeOfLastActivity > a.opts.SessionTimeoutMs:
			a.sessions.RemovePendingAt(i)
			work++
		}
	}
	return work
}

// openAuthenticatedSession appends a "session open" record and, on success,
// moves the session into the open map.
func (a *Agent) openAuthenticatedSession(i int, s *session.Session) {
	rec := &wire.LogRecord{
		Kind:             wire.RecordSessionOpen,
		LeadershipTermId: a.leadershipTermID,
		TimestampMs:      s.TimeOfLastActivity,
		SessionID:        s.ID,
		CorrelationID:    s.CorrelationID,
		ResponseChan:     s.ResponseChan,
		ResponseStreamID: s.StreamID,
	}
	pos, err := a.appendLogRecord(rec)
	if err != nil || pos <= 0 {
		return // back-pressure: retry next tick, session stays pending
	}
	s.MarkOpen(pos)
	a.sessions.MoveToOpen(i)
}

// pumpRejectedSessions emits the rejection reply and drops the session once
// it is sent or it times out (§4.3).
func (a *Agent) pumpRejectedSessions(nowMs int64) int {
	work := 0
	rejected := a.sessions.Rejected()
	for i := len(rejected) - 1; i >= 0; i-- {
		if i >= len(a.sessions.Rejected()) {
			continue
		}
		s := a.sessions.Rejected()[i]
		code := wire.EventAuthenticationRejected
		if s.RejectReason == session.RejectSessionLimit {
			code = wire.EventErrorSessionLimit
		}
		sent := a.emitSessionEvent(s, code, "")
		if sent || nowMs-s.TimeOfLastActivity > a.opts.SessionTimeoutMs {
			a.sessions.RemoveRejectedAt(i)
			work++
		}
	}
	return work
}

// onChallengeResponse routes a challenge reply to the matching pending
// session (§4.3).
func (a *Agent) onChallengeResponse(correlationID, sessionID int64, credentials []byte, nowMs int64) {
	for _, s := range a.sessions.Pending() {
		if s.ID == sessionID && s.State == session.Challenged {
			s.TouchActivity(nowMs)
			s.CorrelationID = correlationID
			a.col.Authenticator.OnChallengeResponse(sessionID, credentials, nowMs, s.NewProxy())
			return
		}
	}
}

// onSessionMessage appends a client command to the log. Returning
// collab.ErrAbort tells the caller not to advance the read position so the
// same buffer is retried next tick (§4.3, §7 (i)).
func (a *Agent) onSessionMessage(payload []byte, sessionID, correlationID, nowMs int64) error {
	s, ok := a.sessions.Open(sessionID)
	if !ok {
		return nil // unknown session: drop silently
	}
	if s.State == session.TimedOut || s.State == session.Closed {
		return nil
	}
	if s.State != session.Open {
		return nil
	}
	rec := &wire.LogRecord{
		Kind:             wire.RecordSessionMessage,
		LeadershipTermId: a.leadershipTermID,
		TimestampMs:      nowMs,
		SessionID:        sessionID,
		CorrelationID:    correlationID,
		Payload:          payload,
	}
	pos, err := a.appendLogRecord(rec)
	if err != nil || pos <= 0 {
		return collab.ErrAbort
	}
	s.TouchActivity(nowMs)
	return nil
}

// onKeepAlive stamps a session's last-activity time (§4.3).
func (a *Agent) onKeepAlive(sessionID, nowMs int64) {
	if s, ok := a.sessions.Open(sessionID); ok {
		s.TouchActivity(nowMs)
	}
}

// onSessionClose begins a client-initiated close (§4.3): the session is
// closed locally immediately, with the CLOSED(USER_ACTION) record retried
// by sessionHousekeeping until it appends successfully; the session leaves
// the open map once its record is appended.
func (a *Agent) onSessionClose(sessionID, nowMs int64) {
	if s, ok := a.sessions.Open(sessionID); ok {
		s.State = session.Closed
		s.RequestClose(session.CloseUserAction)
		if a.tryAppendClose(sessionID, s) {
			a.sessions.RemoveOpen(sessionID)
		}
	}
}

// onAdminQuery stashes a detail string for the ENDPOINTS query and attempts
// to send it immediately; RECORDING_LOG (§9 item 3) always gets the
// emitAdminError reply: an ADMIN_RESPONSE with Detail "error" and Code
// EventOK, since SessionEventCode has no general error value.
func (a *Agent) onAdminQuery(sessionID int64, query wire.AdminQueryKind, nowMs int64) {
	s, ok := a.sessions.Open(sessionID)
	if !ok {
		return
	}
	switch query {
	case wire.AdminQueryEndpoints:
		payload, err := wire.EncodeEndpoints(wire.EndpointsInfo{
			MemberId:            a.memberID,
			MemberStatusChannel: a.col.MemberStatusChannel,
			LogChannel:          a.col.LogChannel,
			IngressChannel:      a.col.IngressChannel,
		})
		if err != nil {
			a.emitAdminError(s)
			return
		}
		s.PendingAdminResponse = payload
		a.tryEmitAdminResponse(s)
	case wire.AdminQueryRecordingLog:
		// TODO(spec §9 item 3): RECORDING_LOG admin query is unimplemented.
		a.emitAdminError(s)
	}
}

// tryEmitChallenge sends a stashed CHALLENGED-state authentication payload,
// clearing it once the send succeeds so a later tick doesn't resend it
// (§4.3). Unlike admin-query replies, a challenge must reach the client
// while the session is still in the pending list, well before it can ever
// become OPEN.
func (a *Agent) tryEmitChallenge(s *session.Session) bool {
	if s.PendingChallenge == nil {
		return true
	}
	msg := &wire.EgressMessage{
		Kind:    wire.EgressChallenge,
		Payload: s.PendingChallenge,
	}
	if a.sendEgress(s, msg) {
		s.PendingChallenge = nil
		return true
	}
	return false
}

func (a *Agent) tryEmitAdminResponse(s *session.Session) bool {
	if s.PendingAdminResponse == nil {
		return true
	}
	msg := &wire.EgressMessage{
		Kind:    wire.EgressAdminResponse,
		Payload: s.PendingAdminResponse,
	}
	if a.sendEgress(s, msg) {
		s.PendingAdminResponse = nil
		return true
	}
	return false
}

func (a *Agent) emitAdminError(s *session.Session) {
	msg := &wire.EgressMessage{Kind: wire.EgressAdminResponse, Code: wire.EventOK, Detail: "error"}
	a.sendEgress(s, msg)
}

// sessionHousekeeping drives per-session timeout/close retries each slow
// tick (§4.3).
func (a *Agent) sessionHousekeeping(nowMs int64) int {
	work := 0
	var toRemove []int64
	a.sessions.EachOpen(func(s *session.Session) {
		switch {
		case s.State == session.Open && s.TimedOutAt(nowMs, a.opts.SessionTimeoutMs):
			s.State = session.TimedOut
			s.RequestClose(session.CloseTimeout)
			if a.tryAppendClose(s.ID, s) {
				toRemove = append(toRemove, s.ID)
			}
			work++
		case s.State == session.TimedOut || s.State == session.Closed:
			if s.CloseAppendPending() {
				if a.tryAppendClose(s.ID, s) {
					toRemove = append(toRemove, s.ID)
					work++
				}
			}
		case s.State == session.Connected:
			a.col.Authenticator.OnProcessConnectedSession(s.NewProxy(), nowMs)
			work++
		case s.State == session.Open && s.PendingAdminResponse != nil:
			if a.tryEmitAdminResponse(s) {
				work++
			}
		}
	})
	for _, id := range toRemove {
		a.sessions.RemoveOpen(id)
	}
	return work
}

// tryAppendClose appends the session's CLOSED record if one is pending,
// returning true once it has been durably appended.
func (a *Agent) tryAppendClose(sessionID int64, s *session.Session) bool {
	if !s.CloseAppendPending() {
		return true
	}
	reason := wire.CloseReasonTimeout
	if s.CloseReasonValue() == session.CloseUserAction {
		reason = wire.CloseReasonUserAction
	}
	rec := &wire.LogRecord{
		Kind:             wire.RecordSessionClose,
		LeadershipTermId: a.leadershipTermID,
		TimestampMs:      a.cachedNowMs,
		SessionID:        sessionID,
		CloseReason:      reason,
	}
	pos, err := a.appendLogRecord(rec)
	if err != nil || pos <= 0 {
		return false
	}
	s.AckCloseAppended()
	s.State = session.Closed
	return true
}

// emitSessionEvent sends a rejection/error reply, returning whether the send
// succeeded.
func (a *Agent) emitSessionEvent(s *session.Session, code wire.SessionEventCode, detail string) bool {
	msg := &wire.EgressMessage{
		Kind:          wire.EgressSessionEvent,
		CorrelationId: s.CorrelationID,
		Code:          code,
		Detail:        detail,
	}
	return a.sendEgress(s, msg)
}

func (a *Agent) sendEgress(s *session.Session, msg *wire.EgressMessage) bool {
	if s.ResponsePub == nil {
		return false
	}
	buf, err := wire.Marshal(msg)
	if err != nil {
		return false
	}
	pos, err := s.ResponsePub.Offer(buf)
	return err == nil && pos > 0
}

// handleServiceAck implements the ACK-counting half of §4.5: every ACK is
// tallied against ServiceCount regardless of whether a cluster action is
// outstanding (recovery's AwaitServiceAcks drives the same counter with no
// pending action in flight). When an action IS outstanding, each ACK is
// validated against it (§4.5 "ACK validation") before counting toward
// completion; once every service has ACKed, the action is applied.
func (a *Agent) handleServiceAck(logPosition, termID int64, serviceID int32, action int32) {
	a.serviceAckCount++
	if a.serviceAckCount > a.col.ServiceCount {
		a.logger.Panicw(errAckCountExceedsServiceCount.Error(), a.fields("service_id", serviceID)...)
	}

	if a.pendingAction == nil {
		return
	}
	expected := a.baseLogPosition + a.currentTermPosition()
	if logPosition != expected || termID != a.pendingAction.termID {
		a.logger.Panicw(errAckLogPositionMismatch.Error(), a.fields("service_id", serviceID, "log_position", logPosition, "expected", expected, "term_id", termID)...)
		return
	}
	if wire.ClusterActionKind(action) != a.pendingAction.kind || !a.ackStateValid(a.pendingAction.kind) {
		a.logger.Panicw(errInvalidActionForState.Error(), a.fields("service_id", serviceID, "action", action)...)
		return
	}

	if a.serviceAckCount < a.col.ServiceCount {
		return
	}
	a.serviceAckCount = 0
	a.completeClusterAction()
}
