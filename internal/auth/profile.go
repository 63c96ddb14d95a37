package auth

import (
	"encoding/json"

	"github.com/hitoshi/taskfront/internal/model"
)

// ProfileShape はプロフィール応答の形状。FlatProfile か NestedProfile のいずれか。
type ProfileShape interface {
	member() (model.Member, bool)
}

// FlatProfile は会員情報がトップレベルに並ぶ形状。
type FlatProfile struct {
	Name1    string
	Name2    string
	MemberID int64
}

// NestedProfile は会員情報が member オブジェクトに入っている形状。
type NestedProfile struct {
	Name1    string
	Name2    string
	MemberID int64
}

func (p FlatProfile) member() (model.Member, bool) {
	return toMember(p.Name1, p.Name2, p.MemberID)
}

func (p NestedProfile) member() (model.Member, bool) {
	return toMember(p.Name1, p.Name2, p.MemberID)
}

func toMember(name1, name2 string, id int64) (model.Member, bool) {
	if name1 == "" || name2 == "" || id == 0 {
		return model.Member{}, false
	}
	return model.Member{Name1: name1, Name2: name2, MemberID: id}, true
}

// ProfileResult はプロフィールAPIの応答。
// どちらの形状も含まない場合 Shape はnilになる。
type ProfileResult struct {
	Shape ProfileShape
}

// Member は応答を会員情報に正規化する。
// 姓・名・会員IDのいずれかが欠けている場合はfalseを返す。
func (r *ProfileResult) Member() (model.Member, bool) {
	if r == nil || r.Shape == nil {
		return model.Member{}, false
	}
	return r.Shape.member()
}

type profileFields struct {
	Name1    *string        `json:"name1"`
	Name2    *string        `json:"name2"`
	MemberID *model.FlexInt `json:"member_id"`
}

func (f profileFields) present() bool {
	return f.Name1 != nil || f.Name2 != nil || f.MemberID != nil
}

type nestedFields struct {
	profileFields
	ID *model.FlexInt `json:"id"`
}

// UnmarshalJSON は応答の形状を判定する。
// トップレベルのフィールドで会員情報が揃う場合はフラット形式を優先し、
// 揃わない場合は member オブジェクトを使う。
func (r *ProfileResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		profileFields
		Member *nestedFields `json:"member"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	flat := FlatProfile{
		Name1:    deref(raw.Name1),
		Name2:    deref(raw.Name2),
		MemberID: derefID(raw.MemberID),
	}
	_, flatOK := flat.member()

	switch {
	case flatOK:
		r.Shape = flat
	case raw.Member != nil:
		id := derefID(raw.Member.MemberID)
		if id == 0 {
			id = derefID(raw.Member.ID)
		}
		r.Shape = NestedProfile{
			Name1:    deref(raw.Member.Name1),
			Name2:    deref(raw.Member.Name2),
			MemberID: id,
		}
	case raw.profileFields.present():
		r.Shape = flat
	default:
		r.Shape = nil
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefID(id *model.FlexInt) int64 {
	if id == nil {
		return 0
	}
	return id.Int64()
}
