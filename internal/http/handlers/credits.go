package handlers

import (
	"net/http"

	"golang.org/x/text/language"

	"server/internal/credit"
)

var displayLanguages = language.NewMatcher([]language.Tag{
	language.English, // default
	language.Indonesian,
	language.German,
	language.French,
})

// CreditsBalance returns the caller's ledger balance in cents plus a
// display string localized from Accept-Language. Accounting callers use the
// cents value only.
func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	balance, err := a.Ledger.Balance(r.Context(), a.DB, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("credits: balance failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}

	tag, _ := language.MatchStrings(displayLanguages, r.Header.Get("Accept-Language"))
	display := "0"
	if balance > 0 {
		display = credit.FormatCredits(balance, tag)
	}

	a.json(w, http.StatusOK, map[string]any{
		"balanceCents": balance,
		"credits":      display,
	})
}
