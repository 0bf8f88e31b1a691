package catalog_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/testutil"
)

func TestTest_ForStudent(t *testing.T) {
	tst := catalog.Test{
		ID: "t-1",
		Questions: []catalog.Question{
			{ID: "q-1", Prompt: "Pick", Options: []string{"A", "B"}, CorrectAnswer: "A"},
		},
	}
	st := tst.ForStudent()
	assert.Empty(t, st.Questions[0].CorrectAnswer)
	assert.Equal(t, []string{"A", "B"}, st.Questions[0].Options)

	st.Questions[0].Options[0] = "Z"
	assert.Equal(t, "A", tst.Questions[0].CorrectAnswer)
	assert.Equal(t, "A", tst.Questions[0].Options[0])
}

func TestNewTest_Validate(t *testing.T) {
	validate := testutil.NewValidate()
	question := func(opts []string, ans string) catalog.NewQuestion {
		return catalog.NewQuestion{Prompt: "Pick the right one", Options: opts, CorrectAnswer: ans}
	}

	tests := []struct {
		name    string
		nt      catalog.NewTest
		wantTag string
	}{
		{name: "valid", nt: catalog.NewTest{Title: " Quiz ", Questions: []catalog.NewQuestion{question([]string{" A ", "B"}, "A")}}},
		{name: "no questions", nt: catalog.NewTest{Title: "Quiz"}, wantTag: "required"},
		{name: "one option", nt: catalog.NewTest{Title: "Quiz", Questions: []catalog.NewQuestion{question([]string{"A"}, "A")}}, wantTag: "min"},
		{name: "blank option", nt: catalog.NewTest{Title: "Quiz", Questions: []catalog.NewQuestion{question([]string{"A", " "}, "A")}}, wantTag: "notblank"},
		{name: "answer not in options", nt: catalog.NewTest{Title: "Quiz", Questions: []catalog.NewQuestion{question([]string{"A", "B"}, "C")}}, wantTag: "answerinoptions"},
		{name: "short title", nt: catalog.NewTest{Title: "Q", Questions: []catalog.NewQuestion{question([]string{"A", "B"}, "A")}}, wantTag: "min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nt := tt.nt
			err := nt.Validate(validate)
			if tt.wantTag == "" {
				require.NoError(t, err)
				assert.Equal(t, "Quiz", nt.Title)
				assert.Equal(t, "A", nt.Questions[0].Options[0])
				return
			}
			require.Error(t, err)
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			tags := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				tags = append(tags, fe.Tag())
			}
			assert.Contains(t, tags, tt.wantTag)
		})
	}
}

func TestNewCourse_Validate(t *testing.T) {
	validate := testutil.NewValidate()

	tests := []struct {
		name    string
		nc      catalog.NewCourse
		wantErr bool
	}{
		{name: "valid", nc: catalog.NewCourse{Title: "Algebra", Instructor: "Ada", Description: "Numbers and letters"}},
		{name: "negative price", nc: catalog.NewCourse{Title: "Algebra", Instructor: "Ada", Description: "Numbers and letters", Price: -1}, wantErr: true},
		{name: "short description", nc: catalog.NewCourse{Title: "Algebra", Instructor: "Ada", Description: "Short"}, wantErr: true},
		{name: "blank title", nc: catalog.NewCourse{Title: "   ", Instructor: "Ada", Description: "Numbers and letters"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nc := tt.nc
			err := nc.Validate(validate)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}
