// ABOUTME: Codec for inline-button payloads of the form action:arg:arg
// ABOUTME: Validates the action name, argument count and the 64-byte callback limit

package flow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxPayloadLen is Telegram's callback_data limit in bytes
const MaxPayloadLen = 64

// ErrInvalidPayload is returned for payloads that do not parse
var ErrInvalidPayload = errors.New("invalid payload")

// Action names the operation a button requests
type Action string

const (
	ActLang         Action = "lang"
	ActSearchGlobal Action = "search_global"
	ActSearchLocal  Action = "search_local"

	ActResultsPage   Action = "gs_page"
	ActResultSelect  Action = "gs_select"
	ActResultsFilter Action = "gs_filter"
	ActSearchAdd     Action = "gs_add"
	ActSearchAdded   Action = "gs_added"
	ActSearchBack    Action = "gs_back"
	ActSearchStatus  Action = "gs_add_select"

	ActListPage         Action = "ls_page"
	ActListStatus       Action = "ls_status"
	ActListSelect       Action = "ls_select"
	ActListSelectRate   Action = "ls_select_rate"
	ActListSelectStatus Action = "ls_select_status"
	ActListSelectSeason Action = "ls_select_season"
	ActListSelectDelete Action = "ls_select_delete"
	ActListBack         Action = "ls_back"
	ActSetRating        Action = "ls_set_rating"
	ActSetStatus        Action = "ls_set_status"
	ActSetSeason        Action = "ls_set_season"
	ActSetSeasonConfirm Action = "ls_set_season_confirm"
	ActSetSeasonClean   Action = "ls_set_season_clean"
	ActSetDelete        Action = "ls_set_delete"

	ActDeepLinkAdd    Action = "dl_add"
	ActDeepLinkStatus Action = "dl_add_select"
	ActDeepLinkBack   Action = "dl_back"

	ActProfileLang  Action = "pf_lang"
	ActProfileShare Action = "pf_share"

	ActCancel         Action = "cancel"
	ActSearchCancel   Action = "gs_cancel"
	ActDeepLinkCancel Action = "dl_cancel"
	ActNoop           Action = "noop"
)

// deleteConfirm is the trailing argument of a confirmed delete
const deleteConfirm = "yes"

// arity lists the accepted argument counts per action
var arity = map[Action][]int{
	ActLang:         {1},
	ActSearchGlobal: {0},
	ActSearchLocal:  {0},

	ActResultsPage:   {1},
	ActResultSelect:  {2},
	ActResultsFilter: {1},
	ActSearchAdd:     {2},
	ActSearchAdded:   {0},
	ActSearchBack:    {1, 2},
	ActSearchStatus:  {3},

	ActListPage:         {1},
	ActListStatus:       {1},
	ActListSelect:       {2},
	ActListSelectRate:   {2},
	ActListSelectStatus: {2},
	ActListSelectSeason: {2},
	ActListSelectDelete: {2},
	ActListBack:         {1, 2},
	ActSetRating:        {3},
	ActSetStatus:        {3},
	ActSetSeason:        {3},
	ActSetSeasonConfirm: {3},
	ActSetSeasonClean:   {2},
	ActSetDelete:        {3},

	ActDeepLinkAdd:    {1},
	ActDeepLinkStatus: {2},
	ActDeepLinkBack:   {1},

	ActProfileLang:  {0},
	ActProfileShare: {0},

	ActCancel:         {0},
	ActSearchCancel:   {0},
	ActDeepLinkCancel: {0},
	ActNoop:           {0},
}

// Payload is a decoded button payload
type Payload struct {
	Action Action
	Args   []string
}

// NewPayload builds a payload from an action and arguments formatted with %v
func NewPayload(action Action, args ...any) Payload {
	p := Payload{Action: action}
	for _, a := range args {
		p.Args = append(p.Args, fmt.Sprint(a))
	}
	return p
}

// ParsePayload decodes data and checks it against the action table
func ParsePayload(data string) (Payload, error) {
	if data == "" {
		return Payload{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	if len(data) > MaxPayloadLen {
		return Payload{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidPayload, len(data), MaxPayloadLen)
	}

	parts := strings.Split(data, ":")
	p := Payload{Action: Action(parts[0]), Args: parts[1:]}
	counts, ok := arity[p.Action]
	if !ok {
		return Payload{}, fmt.Errorf("%w: unknown action %q", ErrInvalidPayload, parts[0])
	}
	for _, n := range counts {
		if len(p.Args) == n {
			for _, a := range p.Args {
				if a == "" {
					return Payload{}, fmt.Errorf("%w: empty argument in %q", ErrInvalidPayload, data)
				}
			}
			return p, nil
		}
	}
	return Payload{}, fmt.Errorf("%w: %s takes %v arguments, got %d", ErrInvalidPayload, p.Action, counts, len(p.Args))
}

// String encodes the payload back to its wire form
func (p Payload) String() string {
	if len(p.Args) == 0 {
		return string(p.Action)
	}
	return string(p.Action) + ":" + strings.Join(p.Args, ":")
}

// Arg returns argument i or the empty string
func (p Payload) Arg(i int) string {
	if i < 0 || i >= len(p.Args) {
		return ""
	}
	return p.Args[i]
}

// Page reads argument i as a page number, floored at 1
func (p Payload) Page(i int) (int, error) {
	n, err := strconv.Atoi(p.Arg(i))
	if err != nil {
		return 0, fmt.Errorf("%w: page %q", ErrInvalidPayload, p.Arg(i))
	}
	return max(n, 1), nil
}

// ID reads argument i as a positive row id
func (p Payload) ID(i int) (int64, error) {
	n, err := strconv.ParseInt(p.Arg(i), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: id %q", ErrInvalidPayload, p.Arg(i))
	}
	return n, nil
}

// Int reads argument i as an integer
func (p Payload) Int(i int) (int, error) {
	n, err := strconv.Atoi(p.Arg(i))
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", ErrInvalidPayload, p.Arg(i))
	}
	return n, nil
}
