package email

import (
	"fmt"
	"strings"

	"github.com/brandon/mailsweep/pkg/types"
)

// InboxFolder always exists on an IMAP server
const InboxFolder = "INBOX"

type folderAliases struct {
	category types.Category
	names    []string
}

// knownFolders is checked in order. Matching is case-insensitive and exact.
var knownFolders = []folderAliases{
	{types.CategoryInbox, []string{InboxFolder}},
	{types.CategorySpam, []string{"Spam", "Junk", "[Gmail]/Spam", "Bulk Mail", "Spam E-mail"}},
	{types.CategoryTrash, []string{"Trash", "[Gmail]/Trash", "Deleted Items", "Deleted Messages"}},
}

// Classify maps a folder name onto its category
func Classify(folder string) types.Category {
	for _, known := range knownFolders {
		for _, alias := range known.names {
			if strings.EqualFold(alias, folder) {
				return known.category
			}
		}
	}
	return types.CategoryOther
}

// MatchingFolders returns the folders classified as c, in listing order
func MatchingFolders(folders []string, c types.Category) []string {
	var matched []string
	for _, f := range folders {
		if Classify(f) == c {
			matched = append(matched, f)
		}
	}
	return matched
}

// ResolveFolder returns the server folder a delete for c should target.
// INBOX resolves even when it was not listed.
func ResolveFolder(c types.Category, folders []string) (string, error) {
	if matched := MatchingFolders(folders, c); len(matched) > 0 {
		return matched[0], nil
	}
	if c == types.CategoryInbox {
		return InboxFolder, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoMatchingFolder, c)
}
