// Package prompt turns a device reading into the request sent to the analyzer.
package prompt

import (
	"strings"

	"github.com/cenfotec-cedula5/energy-monitor/internal/domain"
)

const preamble = `Eres un experto en análisis de consumo eléctrico para un hogar.
Analiza los siguientes datos JSON y proporciona un resumen claro y conciso en español.

Datos recibidos:
`

const fence = "```"

var instructions = []string{
	"1. Un resumen general del consumo total (suma de todos los canales).",
	"2. Un comentario sobre el factor de potencia, explicando si es bueno o malo (cercano a 1 es ideal).",
	"3. Identificar qué canal está consumiendo más energía activa.",
	"4. Proporciona una recomendación o una observación interesante basada en los datos.",
}

// Instructions returns a copy of the fixed points every analysis must cover,
// in order.
func Instructions() []string {
	return append([]string(nil), instructions...)
}

// Build embeds the reading verbatim into the analysis template. It never fails;
// an empty or odd payload is embedded as-is.
func Build(r domain.Reading) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString(fence + "json\n")
	b.Write(r.Payload)
	b.WriteString("\n" + fence + "\n\n")
	b.WriteString("Tu análisis debe incluir:\n")
	for _, line := range instructions {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
