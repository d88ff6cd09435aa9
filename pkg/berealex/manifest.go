package berealex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/karrick/godirwalk"
	"k8s.io/klog/v2"
)

// manifestEntry covers the shapes used by memories.json and posts.json. Older
// exports use frontImage/backImage + takenTime; newer ones primary/secondary
// + takenAt.
type manifestEntry struct {
	FrontImage *MediaRef `json:"frontImage"`
	BackImage  *MediaRef `json:"backImage"`
	Primary    *MediaRef `json:"primary"`
	Secondary  *MediaRef `json:"secondary"`
	BTSMedia   *MediaRef `json:"btsMedia"`
	TakenTime  string    `json:"takenTime"`
	TakenAt    string    `json:"takenAt"`
	Location   *Location `json:"location"`
	Caption    string    `json:"caption"`
}

type realmojiEntry struct {
	Media     *MediaRef `json:"media"`
	Emoji     string    `json:"emoji"`
	PostedAt  string    `json:"postedAt"`
	IsInstant bool      `json:"isInstant"`
}

type chatLogEntry struct {
	ConversationID string    `json:"conversationId"`
	Media          *MediaRef `json:"media"`
	MediaPath      string    `json:"mediaPath"`
	SentAt         string    `json:"sentAt"`
	CreatedAt      string    `json:"createdAt"`
}

// parseTakenTime parses a manifest UTC timestamp such as
// "2022-06-15T10:00:00.000Z".
func parseTakenTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// LoadRecords reads all enabled manifests under the export root. A missing
// manifest for an enabled JSON-backed category is a ConfigError; a missing
// conversations folder just yields no conversation records.
func LoadRecords(c *Config) ([]ExportRecord, error) {
	var records []ExportRecord

	if c.Memories {
		rs, err := loadMoments(c.manifestPath("memories.json"), CategoryMemories)
		if err != nil {
			return nil, err
		}
		records = append(records, rs...)
	}
	if c.Posts {
		rs, err := loadMoments(c.manifestPath("posts.json"), CategoryPosts)
		if err != nil {
			return nil, err
		}
		records = append(records, rs...)
	}
	if c.Realmojis {
		rs, err := loadRealmojis(c.manifestPath("realmojis.json"))
		if err != nil {
			return nil, err
		}
		records = append(records, rs...)
	}
	if c.Conversations {
		rs, err := loadConversations(c)
		if err != nil {
			return nil, err
		}
		records = append(records, rs...)
	}

	klog.Infof("loaded %d records", len(records))
	return records, nil
}

// readEntries decodes a manifest into raw entries so that one malformed
// entry can be skipped without losing the rest.
func readEntries(path string) ([]json.RawMessage, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, configErrorf("manifest %s not found", path)
		}
		return nil, configErrorf("read manifest %s: %v", path, err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(bs, &raws); err != nil {
		return nil, configErrorf("parse manifest %s: %v", path, err)
	}
	return raws, nil
}

func loadMoments(path string, cat Category) ([]ExportRecord, error) {
	raws, err := readEntries(path)
	if err != nil {
		return nil, err
	}

	var records []ExportRecord
	for i, raw := range raws {
		var e manifestEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			klog.Warningf("%s entry %d: %v, skipping", path, i, err)
			continue
		}

		front, back := e.FrontImage, e.BackImage
		if front == nil {
			front = e.Secondary
		}
		if back == nil {
			back = e.Primary
		}
		takenStr := e.TakenTime
		if takenStr == "" {
			takenStr = e.TakenAt
		}

		taken, err := parseTakenTime(takenStr)
		if err != nil {
			klog.Warningf("%s entry %d: %v, skipping", path, i, err)
			continue
		}
		if front == nil && back == nil {
			klog.Warningf("%s entry %d: no media references, skipping", path, i)
			continue
		}

		r := ExportRecord{
			ID:       fmt.Sprintf("%s-%d", cat, i),
			Category: cat,
			Taken:    taken,
			Location: e.Location,
			Caption:  e.Caption,
		}
		if front != nil {
			r.Files = append(r.Files, RecordFile{Role: RoleFront, ManifestPath: front.Path})
		}
		if back != nil {
			r.Files = append(r.Files, RecordFile{Role: RoleBack, ManifestPath: back.Path})
		}
		if e.BTSMedia != nil {
			r.Files = append(r.Files, RecordFile{Role: RoleBTS, ManifestPath: e.BTSMedia.Path})
		}
		records = append(records, r)
	}
	return records, nil
}

func loadRealmojis(path string) ([]ExportRecord, error) {
	raws, err := readEntries(path)
	if err != nil {
		return nil, err
	}

	var records []ExportRecord
	for i, raw := range raws {
		var e realmojiEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			klog.Warningf("%s entry %d: %v, skipping", path, i, err)
			continue
		}
		// only instant realmojis were actually captured by the user
		if !e.IsInstant {
			klog.V(2).Infof("%s entry %d: not instant, skipping", path, i)
			continue
		}
		if e.Media == nil {
			klog.Warningf("%s entry %d: no media reference, skipping", path, i)
			continue
		}

		taken, err := parseTakenTime(e.PostedAt)
		if err != nil {
			klog.Warningf("%s entry %d: %v, skipping", path, i, err)
			continue
		}

		records = append(records, ExportRecord{
			ID:       fmt.Sprintf("%s-%d", CategoryRealmojis, i),
			Category: CategoryRealmojis,
			Taken:    taken,
			Caption:  e.Emoji,
			Files:    []RecordFile{{Role: RoleRealmoji, ManifestPath: e.Media.Path}},
		})
	}
	return records, nil
}

// loadChatLog builds a basename -> sent-time map from chat_log.json, checked
// both at the export root and inside conversations/. An absent log is fine.
func loadChatLog(c *Config) map[string]time.Time {
	times := map[string]time.Time{}

	for _, path := range []string{
		c.manifestPath("chat_log.json"),
		filepath.Join(c.BeRealPath, "conversations", "chat_log.json"),
	} {
		bs, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var entries []chatLogEntry
		if err := json.Unmarshal(bs, &entries); err != nil {
			klog.Warningf("parse %s: %v, falling back to file mtimes", path, err)
			continue
		}

		for i, e := range entries {
			ref := e.MediaPath
			if ref == "" && e.Media != nil {
				ref = e.Media.Path
			}
			if ref == "" {
				continue
			}
			sentStr := e.SentAt
			if sentStr == "" {
				sentStr = e.CreatedAt
			}
			sent, err := parseTakenTime(sentStr)
			if err != nil {
				klog.Warningf("%s entry %d: %v, skipping", path, i, err)
				continue
			}
			times[filepath.Base(filepath.FromSlash(ref))] = sent
		}
	}
	return times
}

// loadConversations walks the optional conversations/ folder, one record per
// media file. Timestamps come from chat_log.json when a file is listed
// there, otherwise from the file's modification time.
func loadConversations(c *Config) ([]ExportRecord, error) {
	root := filepath.Join(c.BeRealPath, "conversations")
	if _, err := os.Stat(root); os.IsNotExist(err) {
		klog.V(1).Infof("no conversations folder, skipping")
		return nil, nil
	}

	times := loadChatLog(c)

	var records []ExportRecord
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || filepath.Base(path)[0] == '.' {
				return nil
			}
			if filepath.Base(path) == "chat_log.json" {
				return nil
			}
			if KindForExt(filepath.Ext(path)) == KindUnknown {
				klog.V(2).Infof("unsupported conversation file %s, skipping", path)
				return nil
			}

			taken, ok := times[filepath.Base(path)]
			if !ok {
				st, err := os.Stat(path)
				if err != nil {
					klog.Warningf("stat %s: %v, skipping", path, err)
					return nil
				}
				taken = st.ModTime().UTC()
			}

			records = append(records, ExportRecord{
				ID:       fmt.Sprintf("%s-%s", CategoryConversations, filepath.Base(path)),
				Category: CategoryConversations,
				Taken:    taken,
				Files:    []RecordFile{{Role: RoleChat, ManifestPath: path}},
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return records, nil
}
