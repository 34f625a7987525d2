// Package application coordena o indicador de "digitando" por (usuário, grupo).
package application
