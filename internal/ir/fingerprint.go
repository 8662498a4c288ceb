package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainNetwork prefixes network fingerprints. The version suffix allows the
// encoding to change without colliding with older fingerprints.
const DomainNetwork = "parsynth/network/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes the canonical form of the network's snapshot. Equal
// graphs have equal fingerprints; handles and insertion order do not matter.
func (n *Network) Fingerprint() (string, error) {
	return n.Snapshot().Fingerprint()
}

// Fingerprint hashes the canonical form of s.
func (s Snapshot) Fingerprint() (string, error) {
	data, err := MarshalCanonical(s.Canonical())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hashWithDomain(DomainNetwork, data), nil
}

// MustFingerprint is like Fingerprint but panics on error.
// Use only in tests.
func (n *Network) MustFingerprint() string {
	fp, err := n.Fingerprint()
	if err != nil {
		panic(err)
	}
	return fp
}

// Canonical converts s into canonical values. Zero-valued optional process
// fields are left out.
func (s Snapshot) Canonical() VObject {
	procs := make(VArray, 0, len(s.Processes))
	for _, p := range s.Processes {
		obj := VObject{
			"id":   VString(p.ID),
			"kind": VString(p.Kind),
		}
		if p.Parent != "" {
			obj["parent"] = VString(p.Parent)
		}
		if len(p.Functions) > 0 {
			fns := make(VArray, 0, len(p.Functions))
			for _, fn := range p.Functions {
				fns = append(fns, canonicalFunction(fn))
			}
			obj["functions"] = fns
		}
		if p.Degree != 0 {
			obj["degree"] = VInt(p.Degree)
		}
		if p.InitialValue != "" {
			obj["initial_value"] = VString(p.InitialValue)
		}
		obj["in_ports"] = canonicalPorts(p.InPorts)
		obj["out_ports"] = canonicalPorts(p.OutPorts)
		procs = append(procs, obj)
	}
	edges := make(VArray, 0, len(s.Edges))
	for _, e := range s.Edges {
		edges = append(edges, VObject{"from": canonicalRef(e.From), "to": canonicalRef(e.To)})
	}
	return VObject{
		"processes": procs,
		"edges":     edges,
		"inputs":    canonicalRefs(s.Inputs),
		"outputs":   canonicalRefs(s.Outputs),
	}
}

func canonicalFunction(fn Function) VObject {
	inputs := make(VArray, 0, len(fn.Inputs))
	for _, p := range fn.Inputs {
		inputs = append(inputs, VObject{"name": VString(p.Name), "type": canonicalType(p.Type)})
	}
	return VObject{
		"name":   VString(fn.Name),
		"inputs": inputs,
		"return": canonicalType(fn.Return),
		"body":   VString(fn.Body),
	}
}

func canonicalType(t DataType) VObject {
	return VObject{
		"name":       VString(t.Name),
		"is_array":   VBool(t.IsArray),
		"array_size": VInt(t.ArraySize),
		"is_pointer": VBool(t.IsPointer),
		"is_const":   VBool(t.IsConst),
	}
}

func canonicalPorts(ports []PortSnapshot) VArray {
	out := make(VArray, 0, len(ports))
	for _, p := range ports {
		out = append(out, VObject{"id": VString(p.ID), "type": canonicalType(p.Type)})
	}
	return out
}

func canonicalRef(r PortRef) VObject {
	return VObject{"process": VString(r.Process), "port": VString(r.Port)}
}

func canonicalRefs(refs []PortRef) VArray {
	out := make(VArray, 0, len(refs))
	for _, r := range refs {
		out = append(out, canonicalRef(r))
	}
	return out
}
