package sshutil

import (
	"bufio"
	"bytes"
	"os"
	"sort"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// SSHHostEntry is one concrete Host alias from an SSH config file.
type SSHHostEntry struct {
	Alias        string
	Hostname     string
	User         string
	Port         string
	IdentityFile string // tilde-expanded
}

// loadSSHConfig decodes the SSH config at path. ssh_config can't parse
// Match blocks, so everything from the first Match line on is dropped;
// matchLine is that line (1-based), or 0.
func loadSSHConfig(path string) (cfg *ssh_config.Config, matchLine int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}

	var kept bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(data))
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if fields := strings.Fields(line); len(fields) > 0 && strings.EqualFold(fields[0], "match") {
			matchLine = n
			break
		}
		kept.WriteString(line)
		kept.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, 0, err
	}

	cfg, err = ssh_config.Decode(&kept)
	if err != nil {
		return nil, matchLine, err
	}
	return cfg, matchLine, nil
}

// lookupHost reads the settings hfwatch cares about for alias. found is
// false when the config sets none of them.
func lookupHost(cfg *ssh_config.Config, alias string) (entry SSHHostEntry, found bool) {
	entry.Alias = alias
	fields := []struct {
		key string
		dst *string
	}{
		{"HostName", &entry.Hostname},
		{"User", &entry.User},
		{"Port", &entry.Port},
		{"IdentityFile", &entry.IdentityFile},
	}
	for _, f := range fields {
		if v, _ := cfg.Get(alias, f.key); v != "" {
			*f.dst = v
			found = true
		}
	}
	entry.IdentityFile = expandPath(entry.IdentityFile)
	return entry, found
}

// ParseSSHConfigFile returns the concrete Host aliases in the file at
// path, sorted. Wildcard and negated patterns can't be dialled and are
// skipped. A missing file yields no entries and no error.
func ParseSSHConfigFile(path string) ([]SSHHostEntry, error) {
	cfg, _, err := loadSSHConfig(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var hosts []SSHHostEntry
	for _, host := range cfg.Hosts {
		for _, pattern := range host.Patterns {
			alias := pattern.String()
			if strings.ContainsAny(alias, "*?!") || seen[alias] {
				continue
			}
			seen[alias] = true
			entry, _ := lookupHost(cfg, alias)
			hosts = append(hosts, entry)
		}
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Alias < hosts[j].Alias })
	return hosts, nil
}

// Aliases returns the alias of each entry, in order.
func Aliases(hosts []SSHHostEntry) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		out = append(out, h.Alias)
	}
	return out
}
