package eventbus

import "assetdesk-client/internal/domain/auth/model"

// LogHandler 将会话事件写入日志
type LogHandler struct {
	logger model.Logger
}

// NewLogHandler creates a handler that reports session events through logger.
func NewLogHandler(logger model.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

// Attach subscribes the handler to every session topic.
func (h *LogHandler) Attach(bus *Bus) error {
	if err := bus.Subscribe(EventSessionStatus, h.onStatus); err != nil {
		return err
	}
	if err := bus.Subscribe(EventCredentialsCleared, h.onCleared); err != nil {
		return err
	}
	return bus.Subscribe(EventTokensRefreshed, h.onRefreshed)
}

// Detach removes the subscriptions made by Attach.
func (h *LogHandler) Detach(bus *Bus) {
	_ = bus.Unsubscribe(EventSessionStatus, h.onStatus)
	_ = bus.Unsubscribe(EventCredentialsCleared, h.onCleared)
	_ = bus.Unsubscribe(EventTokensRefreshed, h.onRefreshed)
}

func (h *LogHandler) onStatus(data StatusEventData) {
	if user := data.User.Username(); user != "" {
		h.logger.Info("session %s -> %s (%s)", data.Previous, data.Current, user)
		return
	}
	h.logger.Info("session %s -> %s", data.Previous, data.Current)
}

func (h *LogHandler) onCleared(data CredentialsClearedData) {
	if data.Detail != "" {
		h.logger.Warn("credentials cleared: %s: %s", data.Reason, data.Detail)
		return
	}
	h.logger.Warn("credentials cleared: %s", data.Reason)
}

func (h *LogHandler) onRefreshed(data TokensRefreshedData) {
	h.logger.Debug("access token refreshed (rotated=%v)", data.Rotated)
}
