// internal/app/features/errors/provisioning.go
package errors

import (
	stderrors "errors"
	"net/http"

	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"go.uber.org/zap"
)

var provisioningErrors = []struct {
	err    error
	status int
	msg    string
}{
	{provisioning.ErrInvalidEmail, http.StatusBadRequest, "Informe um e-mail válido."},
	{provisioning.ErrDomainNotAllowed, http.StatusBadRequest, "Domínio de e-mail não permitido."},
	{roles.ErrNoRoles, http.StatusBadRequest, "Selecione ao menos uma função."},
	{roles.ErrUnknownRole, http.StatusBadRequest, "Função desconhecida."},
	{credentialstore.ErrWeakPassword, http.StatusBadRequest, "A senha deve ter pelo menos 8 caracteres."},
	{provisioning.ErrNotAllowed, http.StatusForbidden, "Você não pode conceder estas funções."},
	{provisioning.ErrAlreadyRegistered, http.StatusConflict, "Este e-mail já está cadastrado."},
	{provisioning.ErrInviteNotFound, http.StatusNotFound, "Convite não encontrado."},
	{provisioning.ErrInviteUsed, http.StatusGone, "Este convite já foi utilizado."},
	{provisioning.ErrInviteExpired, http.StatusGone, "Este convite expirou."},
}

// LogProvisioning answers a failed provisioning call. Rule violations get
// their own status and message; anything else is a server error.
func (e *ErrorLogger) LogProvisioning(w http.ResponseWriter, r *http.Request, msg string, err error) {
	for _, pe := range provisioningErrors {
		if stderrors.Is(err, pe.err) {
			e.Log.Info(msg, append(e.fields(r, err), zap.Int("status", pe.status))...)
			jsonio.Error(w, pe.status, pe.msg)
			return
		}
	}
	e.LogServerError(w, r, msg, err, "Não foi possível concluir o cadastro.")
}
