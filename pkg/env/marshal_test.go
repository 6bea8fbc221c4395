package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Key      string        `env:"API_KEY,required"`
	Model    string        `env:"MODEL"`
	Quota    int           `env:"QUOTA"`
	Enabled  bool          `env:"ENABLED"`
	Window   time.Duration `env:"WINDOW"`
	Tags     []string      `env:"TAGS"`
	Command  []string      `env:"COMMAND" envSeparator:" "`
	Prompt   string        `env:"PROMPT"`
	NoTag    string
	internal string `env:"INTERNAL"`
}

func TestMarshal(t *testing.T) {
	s := &sample{
		Key:      "sk-1",
		Quota:    3,
		Enabled:  true,
		Window:   90 * time.Second,
		Tags:     []string{"a", "b"},
		Command:  []string{"grim", "-"},
		Prompt:   "be brief",
		NoTag:    "skip",
		internal: "skip",
	}

	tests := []struct {
		name string
		opts Options
		want string
	}{
		{
			name: "non-zero fields",
			want: "API_KEY=sk-1\nQUOTA=3\nENABLED=true\nWINDOW=1m30s\nTAGS=a,b\nCOMMAND=\"grim -\"\nPROMPT=\"be brief\"\n",
		},
		{
			name: "template keeps empty keys",
			opts: Options{IncludeEmpty: true, Only: []string{"MODEL", "API_KEY"}},
			want: "MODEL=\nAPI_KEY=sk-1\n",
		},
		{
			name: "only drops missing keys",
			opts: Options{Only: []string{"MODEL", "QUOTA"}},
			want: "QUOTA=3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(s, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshal_RejectsNonStruct(t *testing.T) {
	_, err := Marshal(sample{}, Options{})
	assert.Error(t, err)

	n := 3
	_, err = Marshal(&n, Options{})
	assert.Error(t, err)
}
