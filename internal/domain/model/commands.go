package model

import "strings"

// Chat commands handled by this service.
const (
	CommandSubscribe         = "/subfailedbuildnotifier"
	CommandUnsubscribe       = "/unsubfailedbuildnotifier"
	CommandListSubscriptions = "/myfailedbuildnotifiersubs"

	CommandSubscribeSession   = "/subfailedbuildnotifierwithsession"
	CommandUnsubscribeSession = "/unsubfailedbuildnotifierwithsession"
)

// Callback tokens sent back by inline keyboard buttons.
const (
	TokenCloseSession = "close_failed_build_notifier_session"
	TokenPreviousPage = "failed_build_notifier_previous_page"
	TokenNextPage     = "failed_build_notifier_next_page"
	TokenUnsubAll     = "failed_build_notifier_unsub_all"
	TokenOptionPrefix = "failed_build_notifier_option_"
)

// Typed aliases for page navigation, matched like bare option letters.
const (
	AliasPreviousPage = "prev"
	AliasNextPage     = "next"
)

// NormalizeCommand lower-cases a command token and strips a "@BotName" suffix.
func NormalizeCommand(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if i := strings.IndexByte(token, '@'); i > 0 {
		token = token[:i]
	}
	return token
}

func IsSessionCommand(token string) bool {
	switch NormalizeCommand(token) {
	case CommandSubscribeSession, CommandUnsubscribeSession:
		return true
	}
	return false
}

func IsStatelessCommand(token string) bool {
	switch NormalizeCommand(token) {
	case CommandSubscribe, CommandUnsubscribe, CommandListSubscriptions:
		return true
	}
	return false
}

// OptionKey extracts the page option letter from "failed_build_notifier_option_B"
// or a bare "b". It reports false for anything else.
func OptionKey(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if len(text) > len(TokenOptionPrefix) && strings.EqualFold(text[:len(TokenOptionPrefix)], TokenOptionPrefix) {
		text = text[len(TokenOptionPrefix):]
	}
	if len(text) != 1 {
		return "", false
	}
	c := text[0]
	switch {
	case c >= 'A' && c <= 'Z':
		return text, true
	case c >= 'a' && c <= 'z':
		return string(c - 'a' + 'A'), true
	}
	return "", false
}
