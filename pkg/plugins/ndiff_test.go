package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/scanfold/pkg/engine"
	"github.com/user/scanfold/pkg/xmltree"
)

func TestNdiffReports(t *testing.T) {
	forEachQuerier(t, func(t *testing.T, q xmltree.Querier) {
		reports := NewNdiff(q).Parse(context.Background(), fixture(t, "ndiff.xml"))
		require.Len(t, reports, 3)

		changed := reports[0]
		assert.Equal(t, engine.Host{IP: "10.0.0.1", Hostnames: []string{"gw.example.com"}}, changed.Host)
		assert.Nil(t, changed.Interface)
		assert.Equal(t, []engine.Vuln{{
			Name:        "New ports actives",
			Description: "New service/s found.\nPort: 8080/open\n",
			Refs:        []string{"Ndiff tool"},
			Severity:    engine.SeverityInfo,
		}}, changed.Vulns)

		added := reports[1]
		assert.Equal(t, engine.Host{IP: "10.0.0.3", Hostnames: []string{"new.example.com"}}, added.Host)
		require.Len(t, added.Vulns, 1)
		assert.Equal(t, "New host active", added.Vulns[0].Name)
		assert.Equal(t, "10.0.0.3 is a NEW host active.\nPort: 80/open\nPort: 443/closed\n", added.Vulns[0].Description)

		v6 := reports[2]
		assert.Equal(t, "2001:db8::7", v6.Host.IP)
		assert.Equal(t, "2001:db8::7 is a NEW host active.\n", v6.Vulns[0].Description)
	})
}

func TestNdiffChangedHostWithoutNewPortsIsSilent(t *testing.T) {
	doc := []byte(`<nmapdiff><scandiff><hostdiff><host>
		<address addr="10.0.0.2" addrtype="ipv4"/>
		<ports><portdiff><a><port portid="23"><state state="open"/></port></a></portdiff></ports>
	</host></hostdiff></scandiff></nmapdiff>`)
	rec := record(t, NewNdiff(nil), doc)
	assert.Empty(t, rec.Calls)
}

func TestNdiffNewHostCalls(t *testing.T) {
	doc := []byte(`<nmapdiff><scandiff><hostdiff><b><host>
		<address addr="10.0.0.3" addrtype="ipv4"/>
		<ports>
			<port portid="80"><state state="open"/></port>
			<port portid="443"><state state="closed"/></port>
		</ports>
	</host></b></hostdiff></scandiff></nmapdiff>`)
	rec := record(t, NewNdiff(nil), doc)
	require.Equal(t, []string{"CreateHost", "CreateVulnOnHost"}, rec.Methods())
	v := rec.Calls[1].Payload.(engine.Vuln)
	assert.Contains(t, v.Description, "Port: 80/open\n")
	assert.Contains(t, v.Description, "Port: 443/closed\n")
}

func TestNdiffPrefersIPv4(t *testing.T) {
	doc := []byte(`<nmapdiff><scandiff><hostdiff><b><host>
		<address addr="2001:db8::1" addrtype="ipv6"/>
		<address addr="192.0.2.1" addrtype="ipv4"/>
	</host></b></hostdiff></scandiff></nmapdiff>`)
	reports := NewNdiff(nil).Parse(context.Background(), doc)
	require.Len(t, reports, 1)
	assert.Equal(t, "192.0.2.1", reports[0].Host.IP)
}
