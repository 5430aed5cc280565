package cli

import "butterfly-quiz-service/internal/domain"

// builtinQuestionSets is the fallback question bank used when no Postgres is
// configured, and the payload the seed command loads into one.
func builtinQuestionSets() map[domain.Difficulty][]domain.Question {
	return map[domain.Difficulty][]domain.Question{
		domain.DifficultyEasy: {
			{
				QuestionText:       "What do caterpillars transform into?",
				Options:            []string{"Moths only", "Butterflies", "Beetles", "Dragonflies"},
				CorrectAnswerIndex: 1,
				Reference:          "Butterflies develop from caterpillars through complete metamorphosis.",
				Difficulty:         domain.DifficultyEasy,
			},
			{
				QuestionText:       "How many wings does a butterfly have?",
				Options:            []string{"Two", "Four", "Six", "Eight"},
				CorrectAnswerIndex: 1,
				Reference:          "Butterflies have two forewings and two hindwings.",
				Difficulty:         domain.DifficultyEasy,
			},
			{
				QuestionText:       "What do most adult butterflies eat?",
				Options:            []string{"Leaves", "Nectar", "Wood", "Other insects"},
				CorrectAnswerIndex: 1,
				Reference:          "Adult butterflies feed mainly on flower nectar through a proboscis.",
				Difficulty:         domain.DifficultyEasy,
			},
		},
		domain.DifficultyMedium: {
			{
				QuestionText:       "What is the pupal stage of a butterfly called?",
				Options:            []string{"Larva", "Nymph", "Chrysalis", "Cocoon"},
				CorrectAnswerIndex: 2,
				Reference:          "A butterfly pupa is a chrysalis; cocoons are spun by moth caterpillars.",
				Difficulty:         domain.DifficultyMedium,
			},
			{
				QuestionText:       "Which butterfly is famous for its long migration across North America?",
				Options:            []string{"Painted Lady", "Monarch", "Red Admiral", "Swallowtail"},
				CorrectAnswerIndex: 1,
				Reference:          "Monarchs migrate up to 4,800 km between Canada and central Mexico.",
				Difficulty:         domain.DifficultyMedium,
			},
			{
				QuestionText:       "Butterflies taste their food primarily with which body part?",
				Options:            []string{"Antennae", "Wings", "Feet", "Proboscis"},
				CorrectAnswerIndex: 2,
				Reference:          "Chemoreceptors on a butterfly's feet let it taste a leaf by standing on it.",
				Difficulty:         domain.DifficultyMedium,
			},
		},
		domain.DifficultyAdvance: {
			{
				QuestionText:       "What order of insects do butterflies belong to?",
				Options:            []string{"Coleoptera", "Diptera", "Lepidoptera", "Hymenoptera"},
				CorrectAnswerIndex: 2,
				Reference:          "Lepidoptera, from the Greek for 'scale wing', covers butterflies and moths.",
				Difficulty:         domain.DifficultyAdvance,
			},
			{
				QuestionText:       "The blue of a Morpho butterfly's wings comes from what?",
				Options:            []string{"Blue pigment", "Structural coloration", "Diet", "Reflected sky light"},
				CorrectAnswerIndex: 1,
				Reference:          "Microscopic wing-scale ridges interfere with light to produce the blue.",
				Difficulty:         domain.DifficultyAdvance,
			},
			{
				QuestionText:       "Monarch caterpillars sequester toxins from which host plant?",
				Options:            []string{"Milkweed", "Nettle", "Thistle", "Clover"},
				CorrectAnswerIndex: 0,
				Reference:          "Cardenolides from milkweed make monarchs unpalatable to predators.",
				Difficulty:         domain.DifficultyAdvance,
			},
		},
	}
}
