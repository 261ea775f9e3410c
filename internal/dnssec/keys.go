package dnssec

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// Key types accepted by AddKey.
const (
	KeyTypeKSK = "ksk"
	KeyTypeZSK = "zsk"
	KeyTypeCSK = "csk"
)

// Algorithm is a key algorithm that may be requested for new keys.
type Algorithm struct {
	Name   string `json:"name"`
	Number uint8  `json:"number"`
	// Bits lists the accepted key sizes. 0 lets the server pick.
	Bits []int `json:"bits"`
}

// Algorithms are the algorithms offered when adding keys, keyed by the
// PowerDNS short name.
var Algorithms = map[string]Algorithm{
	"rsasha256": {Name: "RSASHA256", Number: dns.RSASHA256, Bits: []int{0, 1024, 2048, 3072, 4096}},
	"rsasha512": {Name: "RSASHA512", Number: dns.RSASHA512, Bits: []int{0, 1024, 2048, 3072, 4096}},
	"ecdsa256":  {Name: "ECDSAP256SHA256", Number: dns.ECDSAP256SHA256, Bits: []int{0, 256}},
	"ecdsa384":  {Name: "ECDSAP384SHA384", Number: dns.ECDSAP384SHA384, Bits: []int{0, 384}},
	"ed25519":   {Name: "ED25519", Number: dns.ED25519, Bits: []int{0, 256}},
	"ed448":     {Name: "ED448", Number: dns.ED448, Bits: []int{0, 456}},
}

// AlgorithmName returns the mnemonic of an algorithm number, or "Unknown".
func AlgorithmName(alg uint8) string {
	if name, ok := dns.AlgorithmToString[alg]; ok {
		return name
	}
	return "Unknown"
}

// DigestTypeName returns the mnemonic of a DS digest type, or "Unknown".
func DigestTypeName(t uint8) string {
	if name, ok := dns.HashToString[t]; ok {
		return name
	}
	return "Unknown"
}

// ParseDNSKEY parses the rdata of a DNSKEY ("257 3 13 <base64>") owned by zone.
func ParseDNSKEY(zone, rdata string) (*dns.DNSKEY, error) {
	rr, err := dns.NewRR(fmt.Sprintf("%s 3600 IN DNSKEY %s", dns.Fqdn(zone), strings.TrimSpace(rdata)))
	if err != nil {
		return nil, fmt.Errorf("invalid dnskey: %w", err)
	}
	key, ok := rr.(*dns.DNSKEY)
	if !ok || key == nil {
		return nil, fmt.Errorf("invalid dnskey %q", rdata)
	}
	return key, nil
}

// ParseDS parses the rdata of a DS record ("12345 13 2 <hex>") owned by zone.
func ParseDS(zone, rdata string) (*dns.DS, error) {
	rr, err := dns.NewRR(fmt.Sprintf("%s 3600 IN DS %s", dns.Fqdn(zone), strings.TrimSpace(rdata)))
	if err != nil {
		return nil, fmt.Errorf("invalid ds: %w", err)
	}
	ds, ok := rr.(*dns.DS)
	if !ok || ds == nil {
		return nil, fmt.Errorf("invalid ds %q", rdata)
	}
	return ds, nil
}

// ComputeDS derives SHA-256 and SHA-384 DS records from key.
func ComputeDS(key *dns.DNSKEY) []*dns.DS {
	var out []*dns.DS
	for _, h := range []uint8{dns.SHA256, dns.SHA384} {
		if ds := key.ToDS(h); ds != nil {
			out = append(out, ds)
		}
	}
	return out
}
