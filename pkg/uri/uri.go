// Package uri splits request URIs found in web scanner reports into the
// parts a web finding needs.
package uri

import (
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"
)

// ErrUnusable marks a URI without a recognizable scheme or host.
var ErrUnusable = errors.New("unusable uri")

const (
	octet = `(?:25[0-5]|2[0-4][0-9]|1[0-9]{2}|[1-9]?[0-9])`
	ipv4  = octet + `(?:\.` + octet + `){3}`
	dns   = `(?:[a-z0-9\-]+\.)+[a-z]{2,63}`

	pattern = `^(?<scheme>https?|ftp)://` +
		`(?:(?<userinfo>[a-z0-9.\-]+(?::[a-z0-9.&;%$\-]*)?)@)?` +
		`(?<host>` + ipv4 + `|localhost|` + dns + `)` +
		`(?::(?<port>[0-9]{1,5}))?` +
		`(?=[/?#]|$)` +
		`(?<path>/[^?#]*)?` +
		`(?:\?(?<query>[^#]*))?` +
		`(?:#.*)?$`
)

var re = func() *regexp2.Regexp {
	r := regexp2.MustCompile(pattern, regexp2.IgnoreCase)
	r.MatchTimeout = time.Second
	return r
}()

// Decomposed is a URI broken into its parts.
type Decomposed struct {
	URI      string
	Scheme   string
	UserInfo string
	Host     string
	Port     int
	Path     string
	Query    string
	Params   []string
}

// ParamList renders parameter names the way web findings carry them.
func (d Decomposed) ParamList() string {
	return strings.Join(d.Params, ", ")
}

func group(m *regexp2.Match, name string) (string, bool) {
	g := m.GroupByName(name)
	if g == nil || len(g.Captures) == 0 {
		return "", false
	}
	return g.String(), true
}

// Decompose matches raw against a single structured pattern. A URI whose
// scheme or host cannot be captured returns ErrUnusable.
func Decompose(raw string) (Decomposed, error) {
	raw = strings.TrimSpace(raw)
	m, err := re.FindStringMatch(raw)
	if err != nil {
		return Decomposed{}, errors.Wrapf(ErrUnusable, "%s: %v", raw, err)
	}
	if m == nil {
		return Decomposed{}, errors.Wrap(ErrUnusable, raw)
	}

	scheme, okScheme := group(m, "scheme")
	host, okHost := group(m, "host")
	if !okScheme || !okHost {
		return Decomposed{}, errors.Wrap(ErrUnusable, raw)
	}

	d := Decomposed{
		URI:    raw,
		Scheme: strings.ToLower(scheme),
		Host:   strings.ToLower(host),
		Port:   80,
		Path:   "/",
	}
	if d.Scheme == "https" {
		d.Port = 443
	}
	if p, ok := group(m, "port"); ok {
		port, err := strconv.Atoi(p)
		if err != nil || port > 65535 {
			return Decomposed{}, errors.Wrapf(ErrUnusable, "%s: bad port %q", raw, p)
		}
		d.Port = port
	}
	if u, ok := group(m, "userinfo"); ok {
		d.UserInfo = u
	}
	if p, ok := group(m, "path"); ok && p != "" {
		d.Path = p
	}
	if q, ok := group(m, "query"); ok {
		d.Query = q
		d.Params = paramNames(q)
	}
	return d, nil
}

func paramNames(query string) []string {
	if query == "" {
		return nil
	}
	var names []string
	for _, pair := range strings.Split(query, "&") {
		name, _, _ := strings.Cut(pair, "=")
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
