package messenger

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIDFromToken(t *testing.T) {
	token := base64.RawStdEncoding.EncodeToString([]byte("123456789012345678")) + ".x.y"
	assert.Equal(t, "123456789012345678", ClientIDFromToken(token))
	assert.Equal(t, "", ClientIDFromToken("!!!not-base64.x.y"))
}

func TestInviteLink(t *testing.T) {
	token := base64.RawStdEncoding.EncodeToString([]byte("42")) + ".x.y"
	link := InviteLink(token)
	assert.Contains(t, link, "client_id=42")
	assert.Contains(t, link, "permissions=137439266880")

	assert.Equal(t, "", InviteLink("!!!bad.x.y"))
}
