package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// AccountSpec is one account to import.
type AccountSpec struct {
	Name        string         `json:"name" yaml:"name" toml:"name"`
	AuthMethod  string         `json:"auth_method" yaml:"auth_method" toml:"auth_method"`
	Credentials map[string]any `json:"credentials" yaml:"credentials" toml:"credentials"`
}

// CredentialsJSON returns the credentials as the JSON document the pool
// stores.
func (s AccountSpec) CredentialsJSON() (string, error) {
	b, err := json.Marshal(s.Credentials)
	if err != nil {
		return "", fmt.Errorf("encode credentials of %q: %w", s.Name, err)
	}
	return string(b), nil
}

type accountFile struct {
	Accounts []AccountSpec `json:"accounts" yaml:"accounts" toml:"accounts"`
}

// ReadAccountFile reads accounts to import. The format follows the file
// extension: .yaml, .yml, .toml or .json. Each file holds a top-level
// "accounts" list:
//
//	accounts:
//	  - name: primary
//	    auth_method: social
//	    credentials:
//	      refreshToken: "..."
//	      region: us-east-1
//
// A .json file may instead be a single token file as written by the Kiro
// IDE, with refreshToken at the top level. Its authMethod field, if any,
// selects the auth method.
func ReadAccountFile(path string) ([]AccountSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file accountFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	case ".json":
		var single map[string]any
		if err = json.Unmarshal(data, &single); err == nil {
			if _, ok := single["refreshToken"]; ok {
				return []AccountSpec{tokenFileSpec(path, single)}, nil
			}
			err = json.Unmarshal(data, &file)
		}
	default:
		return nil, fmt.Errorf("unsupported account file extension %q (want .yaml, .yml, .toml or .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range file.Accounts {
		spec := &file.Accounts[i]
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("%s-%d", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), i+1)
		}
		if spec.AuthMethod == "" {
			spec.AuthMethod = "social"
		}
		if token, _ := spec.Credentials["refreshToken"].(string); token == "" {
			return nil, fmt.Errorf("account %q: credentials.refreshToken is required", spec.Name)
		}
	}
	return file.Accounts, nil
}

func tokenFileSpec(path string, creds map[string]any) AccountSpec {
	method, _ := creds["authMethod"].(string)
	if method == "" {
		method = "social"
	}
	return AccountSpec{
		Name:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		AuthMethod:  strings.ToLower(method),
		Credentials: creds,
	}
}
