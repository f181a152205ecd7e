package eventbus

import "assetdesk-client/internal/domain/auth/model"

// 事件类型定义
const (
	// EventCredentialsCleared fires after the token store was purged outside
	// of a logout, e.g. when a refresh is rejected.
	EventCredentialsCleared = "session:credentials_cleared"
	// EventTokensRefreshed fires after a refresh stored a new access token.
	EventTokensRefreshed = "session:tokens_refreshed"
	// EventSessionStatus fires on every session state transition.
	EventSessionStatus = "session:status"
)

// Reasons carried by CredentialsClearedData.
const (
	ReasonRefreshFailed   = "refresh_failed"
	ReasonUnauthenticated = "unauthenticated"
)

type CredentialsClearedData struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

type TokensRefreshedData struct {
	Rotated bool `json:"rotated"`
}

type StatusEventData struct {
	Previous model.Status  `json:"previous"`
	Current  model.Status  `json:"current"`
	User     model.Profile `json:"user,omitempty"`
}
