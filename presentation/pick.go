package presentation

import (
	"github.com/zkcred/zkcred/common"
	"github.com/zkcred/zkcred/credential"
	"github.com/zkcred/zkcred/spec"
)

// Supplied is a credential offered for a presentation. Key optionally names
// the input it is meant for.
type Supplied struct {
	Key        string
	Credential *credential.Stored
}

// PickCredentials assigns supplied credentials to the credential inputs of
// a spec. Keyed credentials go to the input they name, the first one winning
// when several name the same input. Every input left is then given, in
// declaration order, the first remaining unkeyed credential that matches its
// credential spec. Credentials left over are ignored.
//
// The matching is greedy: an earlier input may take a credential a later
// input needed even though another assignment would satisfy both.
func PickCredentials(s *spec.Spec, supplied []Supplied) (map[string]*credential.Stored, error) {
	picked := make(map[string]*credential.Stored)
	var unkeyed []*credential.Stored
	for _, c := range supplied {
		if c.Credential == nil {
			continue
		}
		if c.Key == "" {
			unkeyed = append(unkeyed, c.Credential)
			continue
		}
		if _, ok := s.Credential(c.Key); !ok {
			continue
		}
		if _, taken := picked[c.Key]; !taken {
			picked[c.Key] = c.Credential
		}
	}

	used := make([]bool, len(unkeyed))
	var missing []string
	for _, name := range s.CredentialNames() {
		if _, ok := picked[name]; ok {
			continue
		}
		cs, _ := s.Credential(name)
		for i, c := range unkeyed {
			if !used[i] && credential.MatchesSpec(cs, c) {
				picked[name], used[i] = c, true
				break
			}
		}
		if _, ok := picked[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &common.MissingCredentialError{Inputs: missing}
	}
	return picked, nil
}
