package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/edumart/core"
)

type person struct{ id, email string }

func (p person) LogPerson() (string, string, string) { return p.id, p.email, p.email }

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST"})
	logger.Enable(false)

	logger.Warn("something odd", errors.New("boom"), person{id: "u1", email: "a@b.c"}, map[string]interface{}{"k": "v"})

	out := buf.String()
	assert.Contains(t, out, "[WARN] something odd")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "person: u1 <a@b.c>")
	assert.Contains(t, out, "map[k:v]")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{}
	args := logger.prepare("msg", []interface{}{person{id: "u1"}, person{id: "u2"}, 42})
	assert.Equal(t, []interface{}{"msg", 42}, args)
}
