package resume

import (
	"fmt"
	"path"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// 字段键，同时也是 resumes 表的列名。
const (
	KeyUsername        = "username"
	KeyFullName        = "full_name"
	KeyStudyStatus     = "study_status"
	KeyDegree          = "degree"
	KeyMajor           = "major"
	KeyFieldUniversity = "field_university"
	KeyGPA             = "gpa"
	KeyEnglishLevel    = "english_level"
	KeyLocation        = "location"
	KeyPhoneMain       = "phone_main"
	KeyPhoneEmergency  = "phone_emergency"
	KeySkills          = "skills"
	KeyWorkHistory     = "work_history"
	KeyJobPosition     = "job_position"
	KeyOtherDetails    = "other_details"
	KeyTrainingRequest = "training_request"
	KeyUploadedFiles   = "uploaded_files"
	KeyFilePath        = "file_path"
	KeyRegisterDate    = "register_date"
)

// DateLayout 是 register_date 的展示格式。
const DateLayout = "2006-01-02 15:04:05"

// Level 表示技能熟练度。
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// Levels 按展示顺序返回全部熟练度。
func Levels() []Level {
	return []Level{LevelBeginner, LevelIntermediate, LevelAdvanced}
}

// ParseLevel 不区分大小写地解析熟练度。
func ParseLevel(s string) (Level, bool) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelBeginner:
		return LevelBeginner, true
	case LevelIntermediate:
		return LevelIntermediate, true
	case LevelAdvanced:
		return LevelAdvanced, true
	}
	return "", false
}

// Skill 是技能列表中的单项，按 Name 唯一。
type Skill struct {
	Name  string `json:"name"`
	Level Level  `json:"level"`
}

// Intake 是用户在引导流程中填写的字段组，会话期间频繁写入。
type Intake struct {
	Username        string                      `gorm:"column:username;size:64;index" json:"username,omitempty"`
	FullName        string                      `gorm:"column:full_name;size:255;index" json:"full_name,omitempty"`
	StudyStatus     string                      `gorm:"column:study_status;size:64" json:"study_status,omitempty"`
	Degree          string                      `gorm:"column:degree;size:64" json:"degree,omitempty"`
	Major           string                      `gorm:"column:major;size:128" json:"major,omitempty"`
	FieldUniversity string                      `gorm:"column:field_university;size:255" json:"field_university,omitempty"`
	GPA             string                      `gorm:"column:gpa;size:32" json:"gpa,omitempty"`
	EnglishLevel    string                      `gorm:"column:english_level;size:32" json:"english_level,omitempty"`
	Location        string                      `gorm:"column:location;size:512" json:"location,omitempty"`
	PhoneMain       string                      `gorm:"column:phone_main;size:32" json:"phone_main,omitempty"`
	PhoneEmergency  string                      `gorm:"column:phone_emergency;size:32" json:"phone_emergency,omitempty"`
	Skills          datatypes.JSONSlice[Skill]  `gorm:"column:skills" json:"skills,omitempty"`
	WorkHistory     string                      `gorm:"column:work_history;type:text" json:"work_history,omitempty"`
	JobPosition     string                      `gorm:"column:job_position;size:128" json:"job_position,omitempty"`
	OtherDetails    string                      `gorm:"column:other_details;type:text" json:"other_details,omitempty"`
	TrainingRequest string                      `gorm:"column:training_request;size:32" json:"training_request,omitempty"`
	UploadedFiles   datatypes.JSONSlice[string] `gorm:"column:uploaded_files" json:"uploaded_files,omitempty"`
	FilePath        string                      `gorm:"column:file_path;size:512" json:"file_path,omitempty"`
	RegisterDate    *time.Time                  `gorm:"column:register_date;index" json:"register_date,omitempty"`
}

// Moderation 是运营侧维护的标记组，与 Intake 走独立的更新路径。
type Moderation struct {
	IsBlocked       bool       `gorm:"column:is_blocked;not null;default:false" json:"is_blocked"`
	IsDeleted       bool       `gorm:"column:is_deleted;not null;default:false;index" json:"is_deleted"`
	DeletedAt       *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	DeletedBy       *int64     `gorm:"column:deleted_by" json:"deleted_by,omitempty"`
	IsAdminNotified bool       `gorm:"column:is_admin_notified;not null;default:false" json:"is_admin_notified"`
}

// UpsertSkill 按名称插入或替换技能等级，保证名称唯一。
func (in *Intake) UpsertSkill(skill Skill) {
	for i := range in.Skills {
		if in.Skills[i].Name == skill.Name {
			in.Skills[i].Level = skill.Level
			return
		}
	}
	in.Skills = append(in.Skills, skill)
}

// AddFile 追加一个已写入存储的文件路径，并同步 file_path。
func (in *Intake) AddFile(storedPath string) {
	in.UploadedFiles = append(in.UploadedFiles, storedPath)
	in.FilePath = storedPath
}

// Clone 返回深拷贝，避免会话副本与已提交状态共享切片。
func (in Intake) Clone() Intake {
	out := in
	if in.Skills != nil {
		out.Skills = append(datatypes.JSONSlice[Skill]{}, in.Skills...)
	}
	if in.UploadedFiles != nil {
		out.UploadedFiles = append(datatypes.JSONSlice[string]{}, in.UploadedFiles...)
	}
	if in.RegisterDate != nil {
		t := *in.RegisterDate
		out.RegisterDate = &t
	}
	return out
}

// Text 返回字段的人类可读值；组合字段渲染为多行摘要。
func (in *Intake) Text(key string) string {
	switch key {
	case KeySkills:
		return FormatSkills(in.Skills)
	case KeyUploadedFiles:
		return FormatFiles(in.UploadedFiles)
	case KeyRegisterDate:
		if in.RegisterDate == nil {
			return ""
		}
		return in.RegisterDate.Format(DateLayout)
	}
	if p := in.scalar(key); p != nil {
		return *p
	}
	return ""
}

// SetText 写入标量字段；组合字段需使用专门的方法或 ParseSkills。
func (in *Intake) SetText(key, value string) error {
	switch key {
	case KeySkills:
		skills, err := ParseSkills(value)
		if err != nil {
			return err
		}
		in.Skills = skills
		return nil
	case KeyUploadedFiles, KeyRegisterDate:
		return fmt.Errorf("field %q is not text-settable", key)
	}
	p := in.scalar(key)
	if p == nil {
		return fmt.Errorf("unknown field %q", key)
	}
	*p = value
	return nil
}

func (in *Intake) scalar(key string) *string {
	switch key {
	case KeyUsername:
		return &in.Username
	case KeyFullName:
		return &in.FullName
	case KeyStudyStatus:
		return &in.StudyStatus
	case KeyDegree:
		return &in.Degree
	case KeyMajor:
		return &in.Major
	case KeyFieldUniversity:
		return &in.FieldUniversity
	case KeyGPA:
		return &in.GPA
	case KeyEnglishLevel:
		return &in.EnglishLevel
	case KeyLocation:
		return &in.Location
	case KeyPhoneMain:
		return &in.PhoneMain
	case KeyPhoneEmergency:
		return &in.PhoneEmergency
	case KeyWorkHistory:
		return &in.WorkHistory
	case KeyJobPosition:
		return &in.JobPosition
	case KeyOtherDetails:
		return &in.OtherDetails
	case KeyTrainingRequest:
		return &in.TrainingRequest
	case KeyFilePath:
		return &in.FilePath
	}
	return nil
}

// FormatSkills 渲染为换行分隔的 "name: level"。
func FormatSkills(skills []Skill) string {
	lines := make([]string, 0, len(skills))
	for _, s := range skills {
		lines = append(lines, fmt.Sprintf("%s: %s", s.Name, s.Level))
	}
	return strings.Join(lines, "\n")
}

// FormatFiles 渲染为换行分隔的文件名（不含目录）。
func FormatFiles(files []string) string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, path.Base(f))
	}
	return strings.Join(names, "\n")
}

// ParseSkills 解析 FormatSkills 的输出格式，重复名称以后出现者为准。
func ParseSkills(text string) (datatypes.JSONSlice[Skill], error) {
	var in Intake
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, ":")
		if idx <= 0 {
			return nil, fmt.Errorf("skill line %q: expected \"name: level\"", line)
		}
		name := strings.TrimSpace(line[:idx])
		level, ok := ParseLevel(line[idx+1:])
		if name == "" || !ok {
			return nil, fmt.Errorf("skill line %q: expected \"name: level\"", line)
		}
		in.UpsertSkill(Skill{Name: name, Level: level})
	}
	if in.Skills == nil {
		return datatypes.JSONSlice[Skill]{}, nil
	}
	return in.Skills, nil
}
