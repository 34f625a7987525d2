// utilitário pequeno para formatação de valores numéricos em headers.
// Evita puxar fmt só para isso.

package ratelimit

import "strconv"

func formatInt(v int) string { return strconv.Itoa(v) }

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }
