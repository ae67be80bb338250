package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro/internal/privacy/models"
)

func kinds(matches []Match) []models.DataKind {
	out := make([]models.DataKind, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Kind)
	}
	return out
}

func TestDetect_NationalID(t *testing.T) {
	d := New()

	t.Run("with separators", func(t *testing.T) {
		matches := d.Detect("Meu CPF é 123.456.789-00")
		require.Len(t, matches, 1)
		assert.Equal(t, "123.456.789-00", matches[0].Value)
		assert.Equal(t, models.KindNationalID, matches[0].Kind)
	})

	t.Run("bare digits", func(t *testing.T) {
		matches := d.Detect("documento 12345678900 cadastrado")
		require.NotEmpty(t, matches)
		assert.Equal(t, models.KindNationalID, matches[0].Kind)
	})
}

func TestDetect_BusinessID(t *testing.T) {
	d := New()
	matches := d.Detect("CNPJ da empresa: 12.345.678/0001-99")
	require.NotEmpty(t, matches)
	assert.Equal(t, "12.345.678/0001-99", matches[0].Value)
	assert.Equal(t, models.KindBusinessID, matches[0].Kind)
}

func TestDetect_Email(t *testing.T) {
	d := New()
	matches := d.Detect("escreva para clara.souza@example.com.br hoje")
	require.Len(t, matches, 1)
	assert.Equal(t, "clara.souza@example.com.br", matches[0].Value)
	assert.Equal(t, models.KindEmail, matches[0].Kind)
}

func TestDetect_Phone(t *testing.T) {
	d := New()

	t.Run("with country and area code", func(t *testing.T) {
		matches := d.Detect("ligue +55 (11) 98765-4321")
		require.NotEmpty(t, matches)
		assert.Contains(t, kinds(matches), models.KindPhone)
	})

	t.Run("local number", func(t *testing.T) {
		matches := d.Detect("ramal 3456-7890")
		require.NotEmpty(t, matches)
		assert.Equal(t, models.KindPhone, matches[0].Kind)
	})
}

func TestDetect_Name(t *testing.T) {
	d := New()

	t.Run("capitalized bigram matches", func(t *testing.T) {
		matches := d.Detect("falei com Maria Oliveira ontem")
		require.Len(t, matches, 1)
		assert.Equal(t, "Maria Oliveira", matches[0].Value)
		assert.Equal(t, models.KindName, matches[0].Kind)
	})

	t.Run("accented names match", func(t *testing.T) {
		matches := d.Detect("cliente João Antônio confirmou")
		require.Len(t, matches, 1)
		assert.Equal(t, "João Antônio", matches[0].Value)
	})

	t.Run("single capitalized word does not match", func(t *testing.T) {
		matches := d.Detect("a Maria chegou")
		assert.Empty(t, matches)
	})

	t.Run("capitalized run glued to preceding text still matches", func(t *testing.T) {
		matches := d.Detect("OlaMaria Silva falou comigo")
		require.Len(t, matches, 1)
		assert.Equal(t, "Maria Silva", matches[0].Value)
	})

	t.Run("denylisted values are excluded", func(t *testing.T) {
		assert.Empty(t, d.Detect("o maior país é o Brasil Central"))
		assert.Empty(t, d.Detect("exemplo: José Silva"))
	})
}

func TestDetect_DocumentOrderAndLayering(t *testing.T) {
	d := New()

	t.Run("matches come back in document order", func(t *testing.T) {
		matches := d.Detect("Ana Costa pediu contato em ana@example.com sobre o CPF 111.222.333-44")
		require.Len(t, matches, 3)
		assert.Equal(t, models.KindName, matches[0].Kind)
		assert.Equal(t, models.KindEmail, matches[1].Kind)
		assert.Equal(t, models.KindNationalID, matches[2].Kind)
	})

	t.Run("repeated values are not de-duplicated here", func(t *testing.T) {
		matches := d.Detect("111.222.333-44 e de novo 111.222.333-44")
		assert.Len(t, matches, 2)
	})

	t.Run("clean text yields nothing", func(t *testing.T) {
		assert.Empty(t, d.Detect("olá, como posso ajudar?"))
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		assert.Empty(t, d.Detect(""))
	})
}
