package zookeeper

import (
	"errors"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/go-zookeeper/zk"
)

const (
	membersNode    = "members"
	candidatesNode = "candidates"

	// seqDigits is the width of the counter ZooKeeper appends to sequential nodes.
	seqDigits = 10
)

// nodeName turns a namespace or member ID into a single znode name.
func nodeName(s string) string {
	switch s {
	case ".", "..":
		return strings.ReplaceAll(s, ".", "%2E")
	}

	return url.PathEscape(s)
}

func parseNodeName(name string) (string, bool) {
	s, err := url.PathUnescape(name)
	if err != nil || s == "" {
		return "", false
	}

	return s, true
}

// candidatePrefix is the path a member's candidate node is created under;
// ZooKeeper completes it with the sequence counter.
func candidatePrefix(nsPath, memberID string) string {
	return path.Join(nsPath, candidatesNode, nodeName(memberID)) + "-"
}

type candidate struct {
	name   string
	member string
	seq    int64
}

// parseCandidate splits "<member>-<seq>" as created from candidatePrefix.
func parseCandidate(name string) (candidate, bool) {
	cut := len(name) - seqDigits - 1
	if cut < 1 || name[cut] != '-' {
		return candidate{}, false
	}
	seq, err := strconv.ParseInt(name[cut+1:], 10, 64)
	if err != nil {
		return candidate{}, false
	}
	member, ok := parseNodeName(name[:cut])
	if !ok {
		return candidate{}, false
	}

	return candidate{name: name, member: member, seq: seq}, true
}

// sortCandidates parses candidate names, drops foreign ones and orders the rest
// by sequence. The first entry leads.
func sortCandidates(names []string) []candidate {
	cands := make([]candidate, 0, len(names))
	for _, name := range names {
		if c, ok := parseCandidate(name); ok {
			cands = append(cands, c)
		}
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if a.seq != b.seq {
			if a.seq < b.seq {
				return -1
			}
			return 1
		}
		return strings.Compare(a.name, b.name)
	})

	return cands
}

// memberIDs parses member node names and returns the sorted IDs.
func memberIDs(names []string) []string {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if id, ok := parseNodeName(name); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	return slices.Compact(ids)
}

// ensurePath creates p and its missing ancestors as persistent nodes.
func ensurePath(conn Conn, p string) error {
	if p == "/" {
		return nil
	}

	cur := ""
	for _, part := range strings.Split(strings.TrimPrefix(p, "/"), "/") {
		cur += "/" + part

		exists, _, err := conn.Exists(cur)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return err
		}
	}

	return nil
}
