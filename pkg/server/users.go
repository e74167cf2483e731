package server

import (
	"database/sql"
	"encoding/base32"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/securecookie"
	"github.com/sirupsen/logrus"

	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/sami-chanane/thesis-pizza-app/pkg/server/token"
	"github.com/sami-chanane/thesis-pizza-app/pkg/store"
)

func getUser(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")

	ctx := r.Context()
	store := ctx.Value("store").(*store.Store)

	user, err := store.User(login)
	if err == sql.ErrNoRows {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	} else if err != nil {
		logrus.Errorf("cannot get user %s: %s", login, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userString, err := json.Marshal(user)
	if err != nil {
		logrus.Errorf("cannot serialize user %s: %s", login, err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(userString)
}

func getUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := ctx.Value("store").(*store.Store)

	users, err := store.Users()
	if err != nil {
		logrus.Errorf("cannot get users: %s", err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	usersString, err := json.Marshal(users)
	if err != nil {
		logrus.Errorf("cannot serialize users: %s", err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(usersString)
}

func saveUser(w http.ResponseWriter, r *http.Request) {
	var usernameToSave string
	err := json.NewDecoder(r.Body).Decode(&usernameToSave)
	if err != nil {
		logrus.Errorf("cannot decode user name to save: %s", err)
		http.Error(w, http.StatusText(400), 400)
		return
	}

	ctx := r.Context()
	store := ctx.Value("store").(*store.Store)

	user := &model.User{
		Login:  usernameToSave,
		Secret: base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)),
	}

	err = store.CreateUser(user)
	if err != nil {
		logrus.Errorf("cannot creat user %s: %s", user.Login, err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	token := token.New(token.UserToken, user.Login)
	tokenStr, err := token.Sign(user.Secret)
	if err != nil {
		logrus.Errorf("couldn't create user token %s", err)
		http.Error(w, http.StatusText(500), 500)
		return
	}
	// token is not saved as it is JWT
	user.Token = tokenStr

	userString, err := json.Marshal(user)
	if err != nil {
		logrus.Errorf("cannot serialize user %s: %s", user.Login, err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	w.WriteHeader(http.StatusCreated)
	w.Write(userString)
}

func deleteUser(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")

	ctx := r.Context()
	user := ctx.Value("user").(*model.User)
	if login == user.Login {
		logrus.Errorf("self-deletion is not allowed")
		http.Error(w, http.StatusText(400), 400)
		return
	}

	store := ctx.Value("store").(*store.Store)

	err := store.DeleteUser(login)
	if err != nil {
		logrus.Errorf("cannot delete user %s: %s", login, err)
		http.Error(w, http.StatusText(500), 500)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
