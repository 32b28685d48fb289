package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"science", "Science"},
		{"science ", "Science"},
		{" SCIENCE", "Science"},
		{"Social  Science", "Social Science"},
		{"sst", "Social Science"},
		{"mathematics", "Maths"},
		{"environmental science", "Environmental Science"},
		{"fine ARTS", "Fine Arts"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSubject(tt.in), "NormalizeSubject(%q)", tt.in)
	}
}

func TestSubjectsEqual(t *testing.T) {
	assert.True(t, SubjectsEqual("science ", "Science"))
	assert.True(t, SubjectsEqual("computer science", "CS"))
	assert.True(t, SubjectsEqual("Fine Arts", "fine   arts"))
	assert.False(t, SubjectsEqual("Physics", "Chemistry"))
}

func TestSplitJoinSubjects(t *testing.T) {
	assert.Equal(t, []string{"Maths", "Science"}, SplitSubjects("maths / Science/science /"))
	assert.Equal(t, "Maths/Science/English", JoinSubjects([]string{"maths", "science", "Maths", "english"}))
	assert.Equal(t, "", JoinSubjects(nil))
}
