// Package identity generates throwaway applicant identities for order
// registration.
package identity

import (
	"fmt"
	"math/rand"
)

// Gender values as the portal's form expects them.
const (
	GenderMale   = "M"
	GenderFemale = "F"
)

// Person is one generated applicant.
type Person struct {
	Surname    string
	Name       string
	Patronymic string
	Phone      string
	Email      string
	BirthDay   int
	BirthMonth int
	BirthYear  int
	Gender     string
}

var (
	maleSurnames   = []string{"Иванов", "Петров", "Смирнов", "Кузнецов", "Соколов", "Попов", "Волков", "Морозов"}
	femaleSurnames = []string{"Иванова", "Петрова", "Смирнова", "Кузнецова", "Соколова", "Попова", "Волкова", "Морозова"}

	maleNames   = []string{"Александр", "Дмитрий", "Максим", "Сергей", "Андрей", "Алексей", "Артём", "Михаил"}
	femaleNames = []string{"Анастасия", "Мария", "Анна", "Виктория", "Екатерина", "Наталья", "Ольга", "Татьяна"}

	malePatronymics   = []string{"Александрович", "Дмитриевич", "Сергеевич", "Андреевич", "Алексеевич", "Михайлович"}
	femalePatronymics = []string{"Александровна", "Дмитриевна", "Сергеевна", "Андреевна", "Алексеевна", "Михайловна"}
)

// New draws a random person. The email is a plus-aliased variant of the base
// address so every registration lands in one shared mailbox.
func New(r *rand.Rand, baseEmail string) Person {
	p := Person{
		Phone:      randomPhone(r),
		BirthDay:   1 + r.Intn(28),
		BirthMonth: 1 + r.Intn(12),
		BirthYear:  1960 + r.Intn(40),
	}

	if r.Intn(2) == 0 {
		p.Gender = GenderMale
		p.Surname = pick(r, maleSurnames)
		p.Name = pick(r, maleNames)
		p.Patronymic = pick(r, malePatronymics)
	} else {
		p.Gender = GenderFemale
		p.Surname = pick(r, femaleSurnames)
		p.Name = pick(r, femaleNames)
		p.Patronymic = pick(r, femalePatronymics)
	}

	p.Email = PlusAlias(baseEmail, r.Intn(1_000_000))
	return p
}

// PlusAlias inserts "+n" before the @ of addr. Addresses without an @ are
// returned unchanged.
func PlusAlias(addr string, n int) string {
	for i, c := range addr {
		if c == '@' {
			return fmt.Sprintf("%s+%d%s", addr[:i], n, addr[i:])
		}
	}
	return addr
}

func randomPhone(r *rand.Rand) string {
	return fmt.Sprintf("+79%09d", r.Intn(1_000_000_000))
}

func pick(r *rand.Rand, pool []string) string {
	return pool[r.Intn(len(pool))]
}
