package store

import (
	"testing"

	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
	"github.com/stretchr/testify/assert"
)

func TestUserCRUD(t *testing.T) {
	s := NewTest()
	defer func() {
		s.Close()
	}()

	user := model.User{
		Login:  "aLogin",
		Secret: "aSecret",
	}

	err := s.CreateUser(&user)
	assert.Nil(t, err)

	_, err = s.User("noSuchLogin")
	assert.NotNil(t, err)

	u, err := s.User("aLogin")
	assert.Nil(t, err)
	assert.Equal(t, user.Login, u.Login)
	assert.Equal(t, "aSecret", u.Secret)

	u.Secret = "rotatedSecret"
	err = s.UpdateUser(u)
	assert.Nil(t, err)

	u, err = s.User("aLogin")
	assert.Nil(t, err)
	assert.Equal(t, "rotatedSecret", u.Secret)

	users, err := s.Users()
	assert.Nil(t, err)
	assert.Equal(t, len(users), 1)

	err = s.DeleteUser("aLogin")
	assert.Nil(t, err)

	users, err = s.Users()
	assert.Nil(t, err)
	assert.Equal(t, len(users), 0)
}
