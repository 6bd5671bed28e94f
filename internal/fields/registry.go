// Package fields 定义简历记录的有序字段表：键、展示名、校验器与提问文案。
// 字段顺序同时决定持久化列顺序与展示/导出顺序。
package fields

import (
	"fmt"

	"resumedesk/internal/resume"
)

// Kind 区分字段的值类型。
type Kind int

const (
	KindText Kind = iota
	KindChoice
	KindSkills
	KindFiles
	KindDate
)

// 通用选项文案。
const (
	AnswerYes = "Yes"
	AnswerNo  = "No"
)

// Field 是字段表中的一项。
type Field struct {
	Key     string
	Label   string
	Kind    Kind
	Options []string
	Prompt  string
	// Structural 字段由系统维护，不进入通用编辑菜单。
	Structural bool
	Searchable bool
	Filterable bool

	validate Validator
}

// Validate 使用字段的校验器检查输入，返回规范化值；无校验器的字段原样接受。
func (f Field) Validate(input string) (string, error) {
	if f.validate == nil {
		return input, nil
	}
	return f.validate(f.Key, input)
}

// Registry 是构建后不可变的字段表，支持 key→label 与 label→key 的 O(1) 查找。
type Registry struct {
	fields  []Field
	byKey   map[string]int
	byLabel map[string]string
}

// New 构建字段表；键或展示名重复视为构建错误。
func New(list ...Field) (*Registry, error) {
	r := &Registry{
		fields:  make([]Field, 0, len(list)),
		byKey:   make(map[string]int, len(list)),
		byLabel: make(map[string]string, len(list)),
	}
	for _, f := range list {
		if f.Key == "" || f.Label == "" {
			return nil, fmt.Errorf("field %q: key and label are required", f.Key)
		}
		if _, dup := r.byKey[f.Key]; dup {
			return nil, fmt.Errorf("duplicate field key %q", f.Key)
		}
		if other, dup := r.byLabel[f.Label]; dup {
			return nil, fmt.Errorf("label %q shared by %q and %q", f.Label, other, f.Key)
		}
		f.Options = append([]string(nil), f.Options...)
		r.byKey[f.Key] = len(r.fields)
		r.byLabel[f.Label] = f.Key
		r.fields = append(r.fields, f)
	}
	return r, nil
}

// MustNew 包装 New，失败时 panic。
func MustNew(list ...Field) *Registry {
	r, err := New(list...)
	if err != nil {
		panic(err)
	}
	return r
}

// Fields 按顺序返回全部字段的副本。
func (r *Registry) Fields() []Field {
	return append([]Field(nil), r.fields...)
}

// Keys 按顺序返回全部字段键。
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Lookup 按键查找字段。
func (r *Registry) Lookup(key string) (Field, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Field{}, false
	}
	return r.fields[i], true
}

// Label 返回展示名，未知键原样返回。
func (r *Registry) Label(key string) string {
	if f, ok := r.Lookup(key); ok {
		return f.Label
	}
	return key
}

// KeyForLabel 通过展示名反查键。
func (r *Registry) KeyForLabel(label string) (string, bool) {
	key, ok := r.byLabel[label]
	return key, ok
}

// Editable 返回可通过通用编辑菜单修改的字段。
func (r *Registry) Editable() []Field {
	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		if !f.Structural {
			out = append(out, f)
		}
	}
	return out
}

// IsEditable 判断键是否属于可编辑集合。
func (r *Registry) IsEditable(key string) bool {
	f, ok := r.Lookup(key)
	return ok && !f.Structural
}

// Searchable 返回参与模糊搜索的字段键。
func (r *Registry) Searchable() []string {
	var keys []string
	for _, f := range r.fields {
		if f.Searchable {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// IsFilterable 判断键是否支持精确过滤。
func (r *Registry) IsFilterable(key string) bool {
	f, ok := r.Lookup(key)
	return ok && f.Filterable
}

// Default 返回简历收集使用的标准字段表。
func Default() *Registry {
	return MustNew(
		Field{
			Key: resume.KeyUsername, Label: "Handle", Kind: KindText, Searchable: true,
			Prompt:   "1. Your messenger handle\nPlease send your handle (example: @alirezaei).",
			validate: ValidateHandle,
		},
		Field{
			Key: resume.KeyFullName, Label: "Full name", Kind: KindText, Searchable: true,
			Prompt:   "2. Full name\nPlease send your first and last name (example: Ali Rezaei).",
			validate: ValidateFullName,
		},
		Field{
			Key: resume.KeyStudyStatus, Label: "Study status", Kind: KindChoice, Filterable: true,
			Options:  studyStatuses,
			Prompt:   "3. Study status\nPlease choose your current study status.",
			validate: OneOf(studyStatuses...),
		},
		Field{
			Key: resume.KeyDegree, Label: "Degree", Kind: KindChoice, Filterable: true,
			Options:  degrees,
			Prompt:   "4. Degree\nPlease choose your degree.",
			validate: OneOf(degrees...),
		},
		Field{
			Key: resume.KeyMajor, Label: "Major", Kind: KindChoice, Searchable: true,
			Options:  majors,
			Prompt:   "5. Field of study\nPlease choose your field of study.",
			validate: OneOf(majors...),
		},
		Field{
			Key: resume.KeyFieldUniversity, Label: "University", Kind: KindText,
			Prompt:   "6. Last place of study\nPlease send the name of your university or institute.",
			validate: ValidateFreeText,
		},
		Field{
			Key: resume.KeyGPA, Label: "GPA", Kind: KindText,
			Prompt:   "7. GPA\nPlease send your overall GPA (numbers only, decimals allowed).",
			validate: ValidateDecimal,
		},
		Field{
			Key: resume.KeyEnglishLevel, Label: "English level", Kind: KindChoice,
			Options:  levelOptions(),
			Prompt:   "8. English\nHow good is your English?",
			validate: OneOf(levelOptions()...),
		},
		Field{
			Key: resume.KeyLocation, Label: "Location", Kind: KindText,
			Prompt:   "9. Location\nPlease send your city and address.",
			validate: ValidateFreeText,
		},
		Field{
			Key: resume.KeyPhoneMain, Label: "Mobile phone", Kind: KindText,
			Prompt:   "10. Mobile phone\nPlease send your 11-digit mobile number (starting with 09).",
			validate: ValidatePhone,
		},
		Field{
			Key: resume.KeyPhoneEmergency, Label: "Emergency phone", Kind: KindText,
			Prompt:   "11. Emergency contact\nPlease send an 11-digit emergency contact number (starting with 09).",
			validate: ValidatePhone,
		},
		Field{
			Key: resume.KeySkills, Label: "Skills", Kind: KindSkills,
			Options: SkillCatalog,
			Prompt:  "12. Software skills\nPick a skill, then your level. Press \"Continue\" when you are done.",
		},
		Field{
			Key: resume.KeyWorkHistory, Label: "Work history", Kind: KindChoice,
			Options:  []string{AnswerYes, AnswerNo},
			Prompt:   "14. Work history\nDo you have relevant work experience?",
			validate: ValidateWorkHistory,
		},
		Field{
			Key: resume.KeyJobPosition, Label: "Desired position", Kind: KindChoice,
			Options:  jobPositions,
			Prompt:   "15. Desired position\nWhich position fits your abilities?",
			validate: OneOf(jobPositions...),
		},
		Field{
			Key: resume.KeyOtherDetails, Label: "Other details", Kind: KindText,
			Prompt:   "16. Anything else\nAnything else that could help your application? Send \"-\" if not.",
			validate: ValidateFreeText,
		},
		Field{
			Key: resume.KeyTrainingRequest, Label: "Training request", Kind: KindChoice,
			Options:  []string{AnswerYes, AnswerNo},
			Prompt:   "17. Training\nWould you like to join related training courses?",
			validate: OneOf(AnswerYes, AnswerNo),
		},
		Field{Key: resume.KeyUploadedFiles, Label: "Uploaded files", Kind: KindFiles, Structural: true},
		Field{Key: resume.KeyFilePath, Label: "Work sample path", Kind: KindText, Structural: true},
		Field{Key: resume.KeyRegisterDate, Label: "Registered at", Kind: KindDate, Structural: true},
	)
}

// SkillCatalog 是技能步骤的固定候选项。
var SkillCatalog = []string{"GIS", "3D Max", "AutoCAD", "Metashape", "GIS Pro"}

var (
	studyStatuses = []string{"Graduated", "Studying"}
	degrees       = []string{"Bachelor", "Master", "PhD"}
	majors        = []string{"Surveying", "Geomatics", "Civil Engineering", "Geography", "Architecture", "Urban Planning", "Other"}
	jobPositions  = []string{"Regular specialist", "Executive specialist"}
)

func levelOptions() []string {
	levels := resume.Levels()
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}
