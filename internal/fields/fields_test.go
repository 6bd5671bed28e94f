package fields

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumedesk/internal/errcode"
	"resumedesk/internal/resume"
)

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
	}{
		{"09121234567", true},
		{" 09121234567 ", true},
		{"9121234567", false},
		{"091212345678", false},
		{"0912123456", false},
		{"08121234567", false},
		{"0912123456a", false},
		{"+989121234567", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ValidatePhone(resume.KeyPhoneMain, tt.input)
			if tt.ok {
				require.NoError(t, err)
				assert.Len(t, got, 11)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errcode.ErrValidation))
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, resume.KeyPhoneMain, verr.Field)
		})
	}
}

func TestValidators(t *testing.T) {
	got, err := ValidateDecimal(resume.KeyGPA, " 17.25 ")
	require.NoError(t, err)
	assert.Equal(t, "17.25", got)
	_, err = ValidateDecimal(resume.KeyGPA, "seventeen")
	assert.Error(t, err)
	_, err = ValidateDecimal(resume.KeyGPA, "NaN")
	assert.Error(t, err)

	got, err = ValidateFullName(resume.KeyFullName, "  Ali   Rezaei ")
	require.NoError(t, err)
	assert.Equal(t, "Ali Rezaei", got)
	_, err = ValidateFullName(resume.KeyFullName, "Ali")
	assert.Error(t, err)

	got, err = ValidateHandle(resume.KeyUsername, "@ali_rz")
	require.NoError(t, err)
	assert.Equal(t, "ali_rz", got)
	got, err = ValidateHandle(resume.KeyUsername, "ali_rz")
	require.NoError(t, err)
	assert.Equal(t, "ali_rz", got)
	_, err = ValidateHandle(resume.KeyUsername, "@ali")
	assert.Error(t, err)
	_, err = ValidateHandle(resume.KeyUsername, "ali rz")
	assert.Error(t, err)

	_, err = ValidateFreeText(resume.KeyLocation, "   ")
	assert.Error(t, err)

	got, err = OneOf("Bachelor", "Master")(resume.KeyDegree, "master")
	require.NoError(t, err)
	assert.Equal(t, "Master", got)
	_, err = OneOf("Bachelor", "Master")(resume.KeyDegree, "Diploma")
	assert.Error(t, err)
}

func TestValidateWorkHistory(t *testing.T) {
	for input, want := range map[string]string{
		"no":                   AnswerNo,
		"Yes":                  AnswerYes,
		"yes: 2 years at ACME": "Yes: 2 years at ACME",
	} {
		got, err := ValidateWorkHistory(resume.KeyWorkHistory, input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}
	_, err := ValidateWorkHistory(resume.KeyWorkHistory, "maybe")
	assert.Error(t, err)
	_, err = ValidateWorkHistory(resume.KeyWorkHistory, "Yes:   ")
	assert.Error(t, err)
}

func TestDefaultRegistryOrderAndLookup(t *testing.T) {
	r := Default()

	assert.Equal(t, []string{
		resume.KeyUsername, resume.KeyFullName, resume.KeyStudyStatus, resume.KeyDegree, resume.KeyMajor,
		resume.KeyFieldUniversity, resume.KeyGPA, resume.KeyEnglishLevel, resume.KeyLocation,
		resume.KeyPhoneMain, resume.KeyPhoneEmergency, resume.KeySkills, resume.KeyWorkHistory,
		resume.KeyJobPosition, resume.KeyOtherDetails, resume.KeyTrainingRequest,
		resume.KeyUploadedFiles, resume.KeyFilePath, resume.KeyRegisterDate,
	}, r.Keys())

	for _, f := range r.Fields() {
		key, ok := r.KeyForLabel(f.Label)
		require.True(t, ok, f.Label)
		assert.Equal(t, f.Key, key)
		assert.Equal(t, f.Label, r.Label(f.Key))
	}

	assert.Equal(t, "mystery", r.Label("mystery"))
	_, ok := r.KeyForLabel("Mystery")
	assert.False(t, ok)
}

func TestEditableSubset(t *testing.T) {
	r := Default()
	editable := r.Editable()
	assert.Len(t, editable, len(r.Fields())-3)
	for _, key := range []string{resume.KeyUploadedFiles, resume.KeyFilePath, resume.KeyRegisterDate} {
		assert.False(t, r.IsEditable(key), key)
	}
	assert.True(t, r.IsEditable(resume.KeyPhoneMain))
	assert.False(t, r.IsEditable("unknown"))

	assert.ElementsMatch(t, []string{resume.KeyUsername, resume.KeyFullName, resume.KeyMajor}, r.Searchable())
	assert.True(t, r.IsFilterable(resume.KeyDegree))
	assert.False(t, r.IsFilterable(resume.KeyMajor))
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(Field{Key: "a", Label: "A"}, Field{Key: "a", Label: "B"})
	assert.Error(t, err)
	_, err = New(Field{Key: "a", Label: "A"}, Field{Key: "b", Label: "A"})
	assert.Error(t, err)
	_, err = New(Field{Key: "", Label: "A"})
	assert.Error(t, err)

	r, err := New(Field{Key: "a", Label: "A"})
	require.NoError(t, err)
	got, err := r.Fields()[0].Validate("anything")
	require.NoError(t, err)
	assert.Equal(t, "anything", got)
}

func TestFieldValidateUsesRegistryValidator(t *testing.T) {
	f, ok := Default().Lookup(resume.KeyPhoneMain)
	require.True(t, ok)
	_, err := f.Validate("123")
	assert.True(t, errors.Is(err, errcode.ErrValidation))

	f, ok = Default().Lookup(resume.KeyEnglishLevel)
	require.True(t, ok)
	got, err := f.Validate("ADVANCED")
	require.NoError(t, err)
	assert.Equal(t, "advanced", got)
}

func TestRender(t *testing.T) {
	in := resume.Intake{FullName: "Ali Rezaei", PhoneMain: "09121234567"}
	in.UpsertSkill(resume.Skill{Name: "GIS", Level: resume.LevelAdvanced})
	in.UpsertSkill(resume.Skill{Name: "AutoCAD", Level: resume.LevelBeginner})

	assert.Equal(t,
		"Full name: Ali Rezaei\nMobile phone: 09121234567\nSkills:\n  GIS: advanced\n  AutoCAD: beginner",
		Render(Default(), &in))
}
