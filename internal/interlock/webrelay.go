package interlock

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iliyamo/lab-access-control/internal/model"
)

// WebRelayDriver controls HTTP web relay boards.  Setting a relay is a
// GET against stateFull.xml with the desired relay state as a query
// parameter; the board answers with an XML document reporting the
// state of every relay.
type WebRelayDriver struct {
	Client *http.Client
}

// NewWebRelayDriver returns a driver using the default HTTP client.
// The per-command timeout comes from the caller's context.
func NewWebRelayDriver() *WebRelayDriver {
	return &WebRelayDriver{Client: http.DefaultClient}
}

const (
	webRelayOff = 0
	webRelayOn  = 1
)

func (d *WebRelayDriver) SendCommand(ctx context.Context, card model.InterlockCard, channel int, cmd Command) (model.InterlockState, error) {
	var relayState int
	switch cmd {
	case model.StateLocked:
		relayState = webRelayOff
	case model.StateUnlocked:
		relayState = webRelayOn
	default:
		return model.StateUnknown, fmt.Errorf("unsupported command: %v", cmd)
	}

	base := card.Server
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	url := fmt.Sprintf("%s:%d/stateFull.xml?relay%dState=%d", base, card.Port, channel, relayState)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.StateUnknown, err
	}
	if card.Username != "" && card.Password != "" {
		req.SetBasicAuth(card.Username, card.Password)
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return model.StateUnknown, fmt.Errorf("communication error: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.StateUnknown, fmt.Errorf("relay returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.StateUnknown, fmt.Errorf("communication error: %w", err)
	}

	state, err := parseRelayState(body, channel)
	if err != nil {
		return model.StateUnknown, err
	}
	switch state {
	case webRelayOff:
		return model.StateLocked, nil
	case webRelayOn:
		return model.StateUnlocked, nil
	}
	return model.StateUnknown, fmt.Errorf("unexpected state received from relay: %d", state)
}

// parseRelayState extracts <relayNstate> from the board's XML reply.
// The documents vary slightly across firmware revisions, so the
// element is matched by name while walking the tree.
func parseRelayState(body []byte, channel int) (int, error) {
	want := fmt.Sprintf("relay%dstate", channel)
	dec := xml.NewDecoder(strings.NewReader(string(body)))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return 0, fmt.Errorf("relay reply missing element %s", want)
		}
		if err != nil {
			return 0, fmt.Errorf("response format error: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, want) {
			continue
		}
		var value int
		if err := dec.DecodeElement(&value, &start); err != nil {
			return 0, fmt.Errorf("response format error: %w", err)
		}
		return value, nil
	}
}
