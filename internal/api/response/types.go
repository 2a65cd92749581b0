package response

import (
	"sort"

	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/services/auth"
)

// Player represents a player in API responses
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		IsGuest:     p.IsGuest,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Player `json:"player"`
	SessionToken string `json:"session_token"`
}

// AuthResponseFromCredential creates an AuthResponse from a credential
func AuthResponseFromCredential(c *auth.Credential) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(&c.Player),
		SessionToken: c.Token,
	}
}

// ActiveCode is one entry of the join code directory
type ActiveCode struct {
	JoinCode  string `json:"join_code"`
	SessionID string `json:"session_id"`
}

// ActiveCodes is the response for listing join codes
type ActiveCodes struct {
	Codes []ActiveCode `json:"codes"`
}

// ActiveCodesFromMap converts the registry's code directory, sorted by code
func ActiveCodesFromMap(codes map[model.JoinCode]model.SessionID) ActiveCodes {
	out := make([]ActiveCode, 0, len(codes))
	for code, id := range codes {
		out = append(out, ActiveCode{JoinCode: string(code), SessionID: string(id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinCode < out[j].JoinCode })
	return ActiveCodes{Codes: out}
}

// CountdownStarted is the response after starting the lobby countdown
type CountdownStarted struct {
	Session model.SessionView `json:"session"`
}

// PhaseAdvanced is the response after moving to the next street
type PhaseAdvanced struct {
	Phase model.Phase `json:"phase"`
}
