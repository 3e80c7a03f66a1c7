package repository

import "codearena/internal/problem/model"

// DefaultProblems is the built-in set served when a problem id is missing from the database.
func DefaultProblems() []*model.Problem {
	return []*model.Problem{
		{
			ID:         "two-sum",
			Title:      "Two Sum",
			EntryPoint: "twoSum",
			TestCases: []model.TestCase{
				{
					Params:   []model.Param{{Name: "nums", Value: model.Ints(2, 7, 11, 15)}, {Name: "target", Value: model.Int(9)}},
					Expected: "[0,1]",
					Input:    "nums = [2,7,11,15], target = 9",
				},
				{
					Params:   []model.Param{{Name: "nums", Value: model.Ints(3, 2, 4)}, {Name: "target", Value: model.Int(6)}},
					Expected: "[1,2]",
					Input:    "nums = [3,2,4], target = 6",
				},
				{
					Params:   []model.Param{{Name: "nums", Value: model.Ints(3, 3)}, {Name: "target", Value: model.Int(6)}},
					Expected: "[0,1]",
					Hidden:   true,
					Input:    "nums = [3,3], target = 6",
				},
			},
		},
		{
			ID:         "reverse-string",
			Title:      "Reverse String",
			EntryPoint: "reverseString",
			TestCases: []model.TestCase{
				{
					Params:   []model.Param{{Name: "s", Value: model.String("hello")}},
					Expected: "olleh",
					Input:    `s = "hello"`,
				},
				{
					Params:   []model.Param{{Name: "s", Value: model.String("Hannah")}},
					Expected: "hannaH",
					Input:    `s = "Hannah"`,
				},
				{
					Params:   []model.Param{{Name: "s", Value: model.String("a b")}},
					Expected: "b a",
					Hidden:   true,
					Input:    `s = "a b"`,
				},
			},
		},
		{
			ID:         "is-palindrome",
			Title:      "Palindrome Number",
			EntryPoint: "isPalindrome",
			TestCases: []model.TestCase{
				{
					Params:   []model.Param{{Name: "x", Value: model.Int(121)}},
					Expected: "true",
					Input:    "x = 121",
				},
				{
					Params:   []model.Param{{Name: "x", Value: model.Int(-121)}},
					Expected: "false",
					Input:    "x = -121",
				},
				{
					Params:   []model.Param{{Name: "x", Value: model.Int(10)}},
					Expected: "false",
					Hidden:   true,
					Input:    "x = 10",
				},
			},
		},
	}
}
