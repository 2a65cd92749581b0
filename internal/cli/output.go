package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printAuthResult(v)
	case SessionRef:
		o.printSessionRef(v)
	case SessionView:
		o.printSessionView(v)
	case CountdownStarted:
		o.printSessionView(v.Session)
	case PhaseAdvanced:
		fmt.Printf("Phase: %s\n", v.Phase)
	case ActiveCodes:
		o.printActiveCodes(v)
	case FanoutResult:
		fmt.Printf("Delivered: %d, failed: %d, deferred: %d\n", v.Sent, v.Failed, v.Deferred)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// AuthResult combines player and token
type AuthResult struct {
	Player       Player `json:"player"`
	SessionToken string `json:"session_token"`
}

// SessionRef identifies a session and its join code
type SessionRef struct {
	SessionID string `json:"session_id"`
	JoinCode  string `json:"join_code"`
}

// SessionView is the snapshot every member sees
type SessionView struct {
	SessionID        string   `json:"session_id"`
	JoinCode         string   `json:"join_code"`
	Phase            string   `json:"phase"`
	SecondsRemaining *int     `json:"seconds_remaining,omitempty"`
	MemberNames      []string `json:"member_names"`
}

// CountdownStarted response type
type CountdownStarted struct {
	Session SessionView `json:"session"`
}

// PhaseAdvanced response type
type PhaseAdvanced struct {
	Phase string `json:"phase"`
}

// ActiveCode is one join code directory entry
type ActiveCode struct {
	JoinCode  string `json:"join_code"`
	SessionID string `json:"session_id"`
}

// ActiveCodes response type
type ActiveCodes struct {
	Codes []ActiveCode `json:"codes"`
}

// FanoutResult response type
type FanoutResult struct {
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Deferred int `json:"deferred,omitempty"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printPlayer(p Player) {
	guestStr := "no"
	if p.IsGuest {
		guestStr = "yes"
	}
	fmt.Printf("Player: %s (%s)\n", p.DisplayName, p.ID)
	fmt.Printf("Guest: %s\n", guestStr)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	fmt.Printf("Token: %s\n", a.SessionToken)
}

func (o *Output) printSessionRef(r SessionRef) {
	fmt.Printf("Session: %s\n", r.SessionID)
	fmt.Printf("Join Code: %s\n", r.JoinCode)
}

func (o *Output) printSessionView(v SessionView) {
	fmt.Printf("Session: %s (%s)\n", v.SessionID, v.JoinCode)
	fmt.Printf("Phase: %s\n", v.Phase)
	if v.SecondsRemaining != nil {
		fmt.Printf("Starts in: %ds\n", *v.SecondsRemaining)
	}
	fmt.Printf("Members (%d): %s\n", len(v.MemberNames), strings.Join(v.MemberNames, ", "))
}

func (o *Output) printActiveCodes(c ActiveCodes) {
	if len(c.Codes) == 0 {
		fmt.Println("No active sessions")
		return
	}
	for _, entry := range c.Codes {
		fmt.Printf("%s  %s\n", entry.JoinCode, entry.SessionID)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}
