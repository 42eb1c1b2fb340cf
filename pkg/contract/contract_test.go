package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeFileID 验证路径规范化逻辑。
func TestNormalizeFileID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"本地分隔符", filepath.Join("a", "b", "c"), "a/b/c"},
		{"相对路径", "./x/../y", "y"},
		{"空串", "", "."},
		{"Windows路径", "C:\\scout\\A-1.json", "C:/scout/A-1.json"},
		{"清理多余斜杠", "data//matches///B-2.json", "data/matches/B-2.json"},
		{"混合分隔符", "data\\matches/./C-3.json", "data/matches/C-3.json"},
		{"Unix绝对路径", "/srv/scout/../data/A-1.json", "/srv/data/A-1.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(NormalizeFileID(tt.input)))
		})
	}
	assert.Equal(t, "A-1.json", NormalizeFileID("dir\\A-1.json").Base())
}

func TestLabelOrderValidate(t *testing.T) {
	require.NoError(t, LabelOrder{"Team", "Name", "Score"}.Validate())

	cases := map[string]LabelOrder{
		"empty":     nil,
		"blank":     {"Team", " "},
		"duplicate": {"Team", "Name", "Team"},
	}
	for name, o := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, o.Validate(), ErrConfig)
		})
	}
}

func TestLabelOrderClone(t *testing.T) {
	o := LabelOrder{"a", "b"}
	c := o.Clone()
	o[0] = "x"
	assert.Equal(t, LabelOrder{"a", "b"}, c)
	assert.Nil(t, LabelOrder(nil).Clone())
}

// 输出顺序必须等于插入顺序，而不是按键排序。
func TestLabeledRecordMarshalKeepsOrder(t *testing.T) {
	r := LabeledRecord{
		Keys:   []string{"Team", "Name", "Score"},
		Values: []json.RawMessage{json.RawMessage(`"10"`), json.RawMessage(` "Alice" `), json.RawMessage(`5`)},
	}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"Team":"10","Name":"Alice","Score":5}`, string(b))
}

func TestLabeledRecordMarshalMismatch(t *testing.T) {
	_, err := LabeledRecord{Keys: []string{"a"}}.MarshalJSON()
	assert.Error(t, err)
}

func TestLabeledRecordUnmarshalKeepsOrder(t *testing.T) {
	var r LabeledRecord
	require.NoError(t, json.Unmarshal([]byte(`{"z": 1, "a": {"n": [1, 2]}, "m": null}`), &r))

	want := LabeledRecord{
		Keys:   []string{"z", "a", "m"},
		Values: []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`{"n": [1, 2]}`), json.RawMessage(`null`)},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.JSONEq(t, `{"n":[1,2]}`, string(v))
	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 3, r.Len())
}

func TestLabeledRecordUnmarshalRejects(t *testing.T) {
	for _, in := range []string{`["a"]`, `"s"`, `{"a":1} {"b":2}`} {
		var r LabeledRecord
		assert.Error(t, r.UnmarshalJSON([]byte(in)), in)
	}
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(fmt.Errorf("x: %w", ErrCorrupt)))
	assert.True(t, Recoverable(fmt.Errorf("x: %w", ErrAlreadyFormatted)))
	assert.False(t, Recoverable(ErrProjection))
	assert.False(t, Recoverable(errors.New("other")))
}
