// Package notify implements the listener fan-out policy (spec §4.7): given
// a listener's declared fields and a write event, decide whether that
// listener should be included in the change record's listener set.
package notify

import "github.com/qvarnd-io/qvarnd/internal/docval"

// Doc is a parsed listener resource. NotifyOfNew and NotifyOnAll are
// pointers because the create-time fan-out rule (§4.7) distinguishes
// "explicitly false" from "absent" — collapsing that distinction to a
// plain bool would silently break the asymmetric guard the source relies
// on (spec §9 open question a, preserved verbatim).
type Doc struct {
	ListenOnType string
	NotifyOfNew  *bool
	NotifyOnAll  *bool
	ListenOn     []string
}

// ParseDoc extracts listener fields from a validated listener document.
// Keys Validate stripped as unknown are already gone; keys absent from the
// original submission are simply absent from data, so presence here means
// the caller explicitly set the field.
func ParseDoc(data docval.Doc) Doc {
	var d Doc
	if t, ok := data["listen_on_type"].(string); ok {
		d.ListenOnType = t
	}
	if v, ok := data["notify_of_new"].(bool); ok {
		d.NotifyOfNew = &v
	}
	if v, ok := data["notify_on_all"].(bool); ok {
		d.NotifyOnAll = &v
	}
	if arr, ok := data["listen_on"].([]any); ok {
		for _, el := range arr {
			if s, ok := el.(string); ok {
				d.ListenOn = append(d.ListenOn, s)
			}
		}
	}
	return d
}

func isTrue(b *bool) bool  { return b != nil && *b }
func isFalse(b *bool) bool { return b != nil && !*b }

// ShouldNotifyOnCreate implements the create-time rule verbatim:
// notify_of_new = true, OR notify_on_all = true AND notify_of_new != false.
// The second clause's guard only excludes an *explicit* false; an absent
// notify_of_new still lets notify_on_all fire.
func ShouldNotifyOnCreate(l Doc) bool {
	if isTrue(l.NotifyOfNew) {
		return true
	}
	if isTrue(l.NotifyOnAll) && !isFalse(l.NotifyOfNew) {
		return true
	}
	return false
}

// ShouldNotifyOnMutate implements the update/delete rule: notify_on_all =
// true, or listen_on contains the mutated resource's id.
func ShouldNotifyOnMutate(l Doc, resourceID string) bool {
	if isTrue(l.NotifyOnAll) {
		return true
	}
	for _, id := range l.ListenOn {
		if id == resourceID {
			return true
		}
	}
	return false
}

// ChangeType enumerates the kinds of mutation a change record records.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// ShouldNotify dispatches to the create or update/delete rule by change
// type, the single entry point the write path calls per candidate
// listener.
func ShouldNotify(l Doc, change ChangeType, resourceID string) bool {
	if change == ChangeCreated {
		return ShouldNotifyOnCreate(l)
	}
	return ShouldNotifyOnMutate(l, resourceID)
}
